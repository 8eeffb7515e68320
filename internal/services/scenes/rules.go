package scenes

import "strings"

// cocoClasses is the class set of the stock COCO-trained detectors. Seeding
// filters derived vocabularies against the supported set so a scene never
// asks a model for a class it cannot produce.
var cocoClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat", "traffic light",
	"fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard",
	"tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard",
	"cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book", "clock", "vase",
	"scissors", "teddy bear", "hair drier", "toothbrush",
}

// baseClass is included in every derived vocabulary.
const baseClass = "person"

type vocabularyRule struct {
	triggers []string
	classes  []string
}

// vocabularyRules is the fixed, ordered trigger table used to derive a class
// vocabulary from a scene name. Order matters: later rules refine earlier
// ones (e.g. "kitchen" adds appliances on top of the general dining rule).
var vocabularyRules = []vocabularyRule{
	// Transport / outdoors
	{
		triggers: []string{"street", "road", "highway", "parking", "crosswalk", "driveway"},
		classes:  []string{"car", "bus", "truck", "bicycle", "motorcycle", "traffic light", "stop sign"},
	},
	{
		triggers: []string{"station", "platform"},
		classes:  []string{"bench", "backpack", "suitcase", "handbag"},
	},
	{triggers: []string{"train", "subway"}, classes: []string{"train"}},
	{triggers: []string{"bus"}, classes: []string{"bus"}},
	{
		triggers: []string{"airport", "airfield"},
		classes:  []string{"airplane", "suitcase", "handbag"},
	},

	// Indoor / home
	{
		triggers: []string{"living_room", "lounge", "waiting_room", "lobby"},
		classes:  []string{"chair", "couch", "potted plant", "tv", "book", "clock", "vase", "cat", "dog"},
	},
	{
		triggers: []string{"kitchen", "diner", "restaurant", "bar"},
		classes:  []string{"bottle", "cup", "bowl", "fork", "knife", "spoon", "wine glass", "chair", "dining table"},
	},
	{
		triggers: []string{"kitchen"},
		classes:  []string{"microwave", "oven", "toaster", "sink", "refrigerator"},
	},
	{
		triggers: []string{"bedroom", "dorm"},
		classes:  []string{"bed", "clock", "book", "cell phone", "teddy bear"},
	},
	{
		triggers: []string{"bathroom", "shower"},
		classes:  []string{"toilet", "sink", "toothbrush", "hair drier"},
	},
	{
		triggers: []string{"office", "computer", "studio"},
		classes:  []string{"chair", "laptop", "mouse", "keyboard", "book", "cell phone", "scissors"},
	},

	// Sports / recreation
	{
		triggers: []string{"ball", "field", "stadium", "court"},
		classes:  []string{"sports ball", "baseball bat", "baseball glove", "tennis racket"},
	},
	{
		triggers: []string{"park", "garden"},
		classes:  []string{"bench", "bird", "dog", "bicycle", "frisbee", "kite"},
	},

	// Animals
	{
		triggers: []string{"zoo", "farm", "stable"},
		classes:  []string{"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe"},
	},
}

// DeriveVocabulary builds the class vocabulary for a scene name by walking
// the rule table in order. The result always contains the base class, is
// deduplicated preserving first-seen order, and is filtered against the
// supported class set (the stock COCO set when supported is nil).
func DeriveVocabulary(sceneName string, supported []string) []string {
	name := strings.ToLower(strings.ReplaceAll(sceneName, "/", "_"))

	classes := []string{baseClass}
	for _, rule := range vocabularyRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(name, trigger) {
				classes = append(classes, rule.classes...)
				break
			}
		}
	}

	if supported == nil {
		supported = cocoClasses
	}
	allowed := make(map[string]bool, len(supported))
	for _, c := range supported {
		allowed[c] = true
	}

	seen := make(map[string]bool, len(classes))
	out := classes[:0]
	for _, c := range classes {
		if seen[c] || !allowed[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Normalize maps a taxonomy path or operator input to its canonical lookup
// form: the last path segment, lowercased, with underscores replaced by
// spaces ("/a/living_room" -> "living room").
func Normalize(sceneName string) string {
	name := sceneName
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}
