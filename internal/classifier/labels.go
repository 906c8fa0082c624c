package classifier

// Label is the short code and human-readable description of a lesion class.
type Label struct {
	Code        string
	Description string
}

// NumClasses is the width of the model output vector.
const NumClasses = 7

// Unknown is returned for indices outside the trained class range.
var Unknown = Label{Code: "unknown", Description: "Unknown lesion type"}

// labels is indexed by model output position. The order is fixed by training.
var labels = [NumClasses]Label{
	{"akiec", "Actinic keratoses and intraepithelial carcinomae"},
	{"bcc", "basal cell carcinoma"},
	{"bkl", "benign keratosis-like lesions"},
	{"df", "dermatofibroma"},
	{"nv", "melanocytic nevi"},
	{"vasc", "pyogenic granulomas and hemorrhage"},
	{"mel", "melanoma"},
}

// LabelFor maps a class index to its label. It never fails.
func LabelFor(index int) Label {
	if index < 0 || index >= NumClasses {
		return Unknown
	}
	return labels[index]
}

// Labels returns a copy of the full label table in index order.
func Labels() []Label {
	out := make([]Label, NumClasses)
	copy(out, labels[:])
	return out
}
