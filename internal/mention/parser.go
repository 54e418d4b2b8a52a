package mention

import (
	"iter"
	"regexp"

	"golang.org/x/text/cases"
)

// pattern は @word と @"quoted name" に一致する。
// wordは文字・結合文字・数字・連結句読点の1文字以上。
var pattern = regexp.MustCompile(`@([\p{L}\p{M}\p{N}\p{Pc}]+)|@"([^"]+)"`)

// fold は大文字小文字を区別しない比較のためのキーを返す。
func fold(s string) string {
	return cases.Fold().String(s)
}

// Terms は本文中のメンション候補を左から順に返すシーケンスを返す。
// 大文字小文字を無視して重複する候補は最初の表記だけを返す。
// シーケンスは何度rangeしても先頭から走査し直す。
func Terms(body string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		rest := body
		for len(rest) > 0 {
			loc := pattern.FindStringSubmatchIndex(rest)
			if loc == nil {
				return
			}
			var term string
			switch {
			case loc[2] >= 0:
				term = rest[loc[2]:loc[3]]
			case loc[4] >= 0:
				term = rest[loc[4]:loc[5]]
			}
			rest = rest[loc[1]:]

			key := fold(term)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if !yield(term) {
				return
			}
		}
	}
}

// Collect は本文中のメンション候補をスライスで返す。
func Collect(body string) []string {
	var terms []string
	for term := range Terms(body) {
		terms = append(terms, term)
	}
	return terms
}
