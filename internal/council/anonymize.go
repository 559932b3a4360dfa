package council

import "strings"

// labelPrefix is shared by the ranking prompt, the parser and the label map.
const labelPrefix = "Response "

// Label returns the anonymous label for the i-th (0-based) entry:
// Response A ... Response Z, Response AA, Response AB, ...
func Label(i int) string {
	return labelPrefix + letters(i)
}

// letters is bijective base-26: 0 -> A, 25 -> Z, 26 -> AA.
func letters(i int) string {
	var buf []byte
	for n := i + 1; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return string(buf)
}

// Anonymize labels every successful, non-empty answer in result order.
// Failed and empty answers are left out since they cannot be ranked.
// Labelling is deterministic: identical input gives identical labels.
func Anonymize(stage1 StageOneResult) ([]AnonymizedEntry, map[string]string) {
	entries := make([]AnonymizedEntry, 0, len(stage1))
	labelToModel := make(map[string]string, len(stage1))

	for _, resp := range stage1 {
		if !resp.Succeeded || strings.TrimSpace(resp.Content) == "" {
			continue
		}
		label := Label(len(entries))
		entries = append(entries, AnonymizedEntry{
			Label:   label,
			Model:   resp.Model,
			Content: resp.Content,
		})
		labelToModel[label] = resp.Model
	}
	return entries, labelToModel
}

// Labels returns the labels of entries in order.
func Labels(entries []AnonymizedEntry) []string {
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label
	}
	return labels
}
