package tokens

const maskKeep = 5

// MaskToken hides the middle of a token for display. Tokens of at most ten
// characters are returned unchanged.
func MaskToken(token string) string {
	runes := []rune(token)
	if len(runes) <= 2*maskKeep {
		return token
	}
	return string(runes[:maskKeep]) + "..." + string(runes[len(runes)-maskKeep:])
}
