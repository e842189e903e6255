package avatar3d

import "fmt"

// VisemeCode is one of the mouth shape classes emitted by the lip-sync analyser.
// The zero value is not a valid code.
type VisemeCode uint8

const (
	visemeInvalid VisemeCode = iota
	VisemeA                  // closed: p, b, m
	VisemeB                  // slightly open, clenched teeth: k, s, t
	VisemeC                  // open: eh, ae
	VisemeD                  // wide open: aa
	VisemeE                  // rounded: ao, er
	VisemeF                  // puckered: uw, ow, w
	VisemeG                  // upper teeth on lower lip: f, v
	VisemeH                  // tongue raised: l
	VisemeX                  // rest
	visemeCount
)

var visemeLetters = [visemeCount]string{
	"", "A", "B", "C", "D", "E", "F", "G", "H", "X",
}

// visemeMorphTargets maps each code onto the Oculus-style morph target names
// carried by Ready Player Me heads.
var visemeMorphTargets = [visemeCount]string{
	VisemeA: "viseme_PP",
	VisemeB: "viseme_kk",
	VisemeC: "viseme_I",
	VisemeD: "viseme_AA",
	VisemeE: "viseme_O",
	VisemeF: "viseme_U",
	VisemeG: "viseme_FF",
	VisemeH: "viseme_TH",
	VisemeX: "viseme_PP",
}

// AllVisemeCodes returns the closed code set in declaration order.
func AllVisemeCodes() []VisemeCode {
	codes := make([]VisemeCode, 0, visemeCount-1)
	for c := VisemeA; c < visemeCount; c++ {
		codes = append(codes, c)
	}
	return codes
}

func (c VisemeCode) Valid() bool {
	return c > visemeInvalid && c < visemeCount
}

func (c VisemeCode) String() string {
	if !c.Valid() {
		return fmt.Sprintf("VisemeCode(%d)", uint8(c))
	}
	return visemeLetters[c]
}

// ParseVisemeCode accepts exactly one letter of the code set.
func ParseVisemeCode(s string) (VisemeCode, error) {
	for c := VisemeA; c < visemeCount; c++ {
		if visemeLetters[c] == s {
			return c, nil
		}
	}
	return visemeInvalid, fmt.Errorf("%w: %q", ErrUnknownVisemeCode, s)
}

// MapViseme returns the morph target name for code.
func MapViseme(code VisemeCode) (string, error) {
	if !code.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownVisemeCode, code)
	}
	return visemeMorphTargets[code], nil
}
