// Package messages holds the user-facing strings printed by the CLI and
// attached to push failures, so wording lives in one place.
package messages

const (
	PushUnsupported = "background delivery is not configured (set KARAS_PUSH_URL)"
	PushPermission  = "no notification sink on this machine: install notify-send/espeak-ng or set KARAS_NOTIFY_CMD"
	PushNetwork     = "cannot reach the server. Check KARAS_API_URL and your connection, then retry"
	PushSession     = "session expired or registration rejected. Log in again"
	PushServer      = "the push service returned an error. Retry, or regenerate the server VAPID keys (no spaces or line breaks)"

	SessionExpired = "session expired, please log in again"
	NotLoggedIn    = "not logged in. Run: karas-agent login"
)
