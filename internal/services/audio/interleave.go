package audio

// Interleave orders chunks for bilingual output: one primary-language part
// followed by its counterpart in the secondary language, repeating. Leftover
// parts from the longer list are appended at the end so nothing is dropped
// when the two translations chunked differently.
func Interleave(primary, secondary []string) []string {
	if len(secondary) == 0 {
		return primary
	}
	ordered := make([]string, 0, len(primary)+len(secondary))
	n := len(primary)
	if len(secondary) < n {
		n = len(secondary)
	}
	for i := 0; i < n; i++ {
		ordered = append(ordered, primary[i], secondary[i])
	}
	ordered = append(ordered, primary[n:]...)
	ordered = append(ordered, secondary[n:]...)
	return ordered
}
