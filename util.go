// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

// findMatchingProtocol picks the first local protocol the peer also offered.
// Local order expresses preference.
func findMatchingProtocol(local, offered []string) (string, bool) {
	for _, l := range local {
		for _, o := range offered {
			if l == o {
				return l, true
			}
		}
	}
	return "", false
}
