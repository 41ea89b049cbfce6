package voice

import (
	"errors"
	"regexp"
	"strings"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
)

// ErrInvalidVoice indicates the input could not be resolved to any voice.
var ErrInvalidVoice = errors.New("voice selection could not be resolved")

// elevenLabsIDPattern matches ElevenLabs-style opaque voice ids: a long
// alphanumeric token of 15-25 characters.
var elevenLabsIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{15,25}$`)

// curatedVoice is one entry of the curated voice library.
type curatedVoice struct {
	ID       string
	Provider domain.VoiceProvider
	Name     string
	Tags     []string
}

// curatedLibrary is the library shipped with the service. Lookup is by exact
// id first, then by name, then by description keywords.
var curatedLibrary = []curatedVoice{
	{ID: "EXAVITQu4vr4xnSDxMaL", Provider: domain.VoiceProviderElevenLabs, Name: "sarah", Tags: []string{"warm", "female", "friendly"}},
	{ID: "ErXwobaYiN019PkySvjV", Provider: domain.VoiceProviderElevenLabs, Name: "antoni", Tags: []string{"male", "calm", "deep"}},
	{ID: "21m00Tcm4TlvDq8ikWAM", Provider: domain.VoiceProviderElevenLabs, Name: "rachel", Tags: []string{"female", "professional", "clear"}},
	{ID: "pNInz6obpgDQGcFmaJgB", Provider: domain.VoiceProviderElevenLabs, Name: "adam", Tags: []string{"male", "energetic", "upbeat"}},
	{ID: "elliot", Provider: domain.VoiceProviderVAPI, Name: "elliot", Tags: []string{"male", "neutral"}},
	{ID: "paige", Provider: domain.VoiceProviderVAPI, Name: "paige", Tags: []string{"female", "bright"}},
}

// legacyNameMap maps voice names from the pre-library signup form to curated
// library ids.
var legacyNameMap = map[string]string{
	"bella":    "EXAVITQu4vr4xnSDxMaL",
	"josh":     "pNInz6obpgDQGcFmaJgB",
	"default":  "elliot",
	"standard": "elliot",
}

// Resolve resolves a user voice input (an id, a name, or a free-text
// description) to a concrete provider/id pair.
//
// Empty input returns (nil, nil): the caller skips voice configuration and
// the platform default applies. Non-empty input either resolves or fails with
// ErrInvalidVoice; a silent fallback to a default voice is deliberately not
// offered, since the agent must not be created with a voice the owner did not
// choose.
func Resolve(voiceInput string) (*domain.VoiceSelection, error) {
	input := strings.TrimSpace(voiceInput)
	if input == "" {
		return nil, nil
	}

	// 1. Curated library by exact id.
	for _, v := range curatedLibrary {
		if v.ID == input {
			return &domain.VoiceSelection{Provider: v.Provider, VoiceID: v.ID}, nil
		}
	}

	lower := strings.ToLower(input)

	// 2. Legacy name mapping from the old signup form.
	if id, ok := legacyNameMap[lower]; ok {
		for _, v := range curatedLibrary {
			if v.ID == id {
				return &domain.VoiceSelection{Provider: v.Provider, VoiceID: v.ID}, nil
			}
		}
	}

	// Curated library by name.
	for _, v := range curatedLibrary {
		if v.Name == lower {
			return &domain.VoiceSelection{Provider: v.Provider, VoiceID: v.ID}, nil
		}
	}

	// 3. ElevenLabs-style opaque id.
	if elevenLabsIDPattern.MatchString(input) {
		return &domain.VoiceSelection{Provider: domain.VoiceProviderElevenLabs, VoiceID: input}, nil
	}

	// Free-text description: match against curated tags, best overlap wins.
	if strings.ContainsRune(lower, ' ') {
		if v := matchDescription(lower); v != nil {
			return v, nil
		}
		return nil, ErrInvalidVoice
	}

	// 4. Anything else is a single token: treat it as a platform-native
	// voice name. Whether the platform actually knows it is settled by the
	// validation call, not here.
	return &domain.VoiceSelection{Provider: domain.VoiceProviderVAPI, VoiceID: lower}, nil
}

func matchDescription(description string) *domain.VoiceSelection {
	words := strings.Fields(description)
	bestScore := 0
	var best *curatedVoice
	for i := range curatedLibrary {
		v := &curatedLibrary[i]
		score := 0
		for _, tag := range v.Tags {
			for _, w := range words {
				if w == tag {
					score++
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = v
		}
	}
	if best == nil {
		return nil
	}
	return &domain.VoiceSelection{Provider: best.Provider, VoiceID: best.ID}
}
