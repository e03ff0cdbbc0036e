package utilities

const tokenVisiblePrefix = 8

// MaskToken keeps the first few characters of a push token. Tokens are bearer
// credentials and never leave the process in full.
func MaskToken(token string) string {
	if len(token) <= tokenVisiblePrefix {
		return token
	}
	return token[:tokenVisiblePrefix] + "..."
}
