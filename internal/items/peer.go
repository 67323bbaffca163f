package items

import "strings"

// explicitPeers pairs known voice sheets. Entries only apply when the
// target sheet exists in the workbook.
var explicitPeers = map[string]string{
	"Atika - Male":   "Atika - Female",
	"Atika - Female": "Atika - Male",
	"Male":           "Female",
	"Female":         "Male",
}

// ResolvePeer returns the sheet holding the opposite voice of sheet.
func ResolvePeer(sheet string, all []string) (string, bool) {
	if peer, ok := explicitPeers[sheet]; ok && contains(all, peer) {
		return peer, true
	}

	lower := strings.ToLower(sheet)
	// "female" contains "male", so the male->female pass runs first and
	// only matches when the rewritten name is a real sheet.
	if strings.Contains(lower, "male") {
		if name, ok := findFold(all, strings.ReplaceAll(lower, "male", "female")); ok {
			return name, true
		}
	}
	if strings.Contains(lower, "female") {
		if name, ok := findFold(all, strings.ReplaceAll(lower, "female", "male")); ok {
			return name, true
		}
	}
	return "", false
}

func findFold(names []string, candidate string) (string, bool) {
	for _, name := range names {
		if strings.ToLower(name) == candidate {
			return name, true
		}
	}
	return "", false
}

func contains(names []string, target string) bool {
	for _, name := range names {
		if name == target {
			return true
		}
	}
	return false
}
