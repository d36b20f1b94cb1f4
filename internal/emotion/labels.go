// Package emotion defines the fixed label set produced by the emotion classifier
// and the math used to turn classifier output into a single prediction.
package emotion

import (
	"fmt"
	"strings"
)

// Label is one of the classifier's output classes, in model index order.
type Label int

// Labels in the order the classifier emits them.
const (
	Angry Label = iota
	Disgust
	Fear
	Happy
	Neutral
	Sad
	Surprise

	// NumClasses is the length of every Distribution.
	NumClasses = int(Surprise) + 1
)

// rawNames are the class names used on the wire. Index 6 keeps the spelling the
// trained model's id2label mapping uses.
var rawNames = [NumClasses]string{
	Angry:    "Angry",
	Disgust:  "Disgust",
	Fear:     "Fear",
	Happy:    "Happy",
	Neutral:  "Neutral",
	Sad:      "Sad",
	Surprise: "Suprise",
}

// GameEmotion is the coarse emotion reported to the game client.
type GameEmotion string

// Game emotions. Labels without a game emotion map to the empty value.
const (
	GameNone      GameEmotion = ""
	GameHappy     GameEmotion = "happy"
	GameSad       GameEmotion = "sad"
	GameSurprised GameEmotion = "surprised"
)

var gameEmotions = [NumClasses]GameEmotion{
	Angry:    GameNone,
	Disgust:  GameNone,
	Fear:     GameNone,
	Happy:    GameHappy,
	Neutral:  GameNone,
	Sad:      GameSad,
	Surprise: GameSurprised,
}

// AllLabels returns every label in index order.
func AllLabels() []Label {
	labels := make([]Label, NumClasses)
	for i := range labels {
		labels[i] = Label(i)
	}
	return labels
}

// Valid reports whether l is inside the fixed label set.
func (l Label) Valid() bool {
	return l >= 0 && int(l) < NumClasses
}

// String returns the raw class name.
func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return rawNames[l]
}

// Game returns the coarse game emotion for l, or GameNone.
func (l Label) Game() GameEmotion {
	if !l.Valid() {
		return GameNone
	}
	return gameEmotions[l]
}

// ParseLabel resolves a raw class name. Both spellings of Surprise are accepted.
func ParseLabel(name string) (Label, error) {
	name = strings.TrimSpace(name)
	for i, raw := range rawNames {
		if strings.EqualFold(raw, name) {
			return Label(i), nil
		}
	}
	if strings.EqualFold(name, "Surprise") {
		return Surprise, nil
	}
	return 0, fmt.Errorf("unknown emotion label %q", name)
}

// RawNames returns the wire names of all labels in index order.
func RawNames() []string {
	names := make([]string, NumClasses)
	copy(names, rawNames[:])
	return names
}
