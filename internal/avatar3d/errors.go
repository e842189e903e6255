package avatar3d

import "errors"

var (
	ErrAssetNotFound     = errors.New("asset not found")
	ErrMeshNotFound      = errors.New("head mesh not found")
	ErrDictionaryMissing = errors.New("morph target dictionary missing")
	ErrClipNotFound      = errors.New("animation clip not found")
	ErrUnknownVisemeCode = errors.New("unknown viseme code")
	ErrEmptyCueList      = errors.New("empty mouth cue list")
	ErrInvalidCues       = errors.New("invalid mouth cues")
)
