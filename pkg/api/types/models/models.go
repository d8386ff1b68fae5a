package models

// Version is a version in the model registry.
type Version struct {
	Version int  `json:"version"`
	Latest  bool `json:"latest"`
}

// Versions composes Version of each registry version. versions should be sorted.
func Versions(versions []int) []Version {
	ret := make([]Version, len(versions))
	for i, v := range versions {
		ret[i] = Version{Version: v, Latest: i == len(versions)-1}
	}
	return ret
}

// PredictResponse is the body returned by POST /api/predict.
type PredictResponse struct {
	// registry version used for the prediction
	Version int `json:"version"`

	// the input record with the predicted label
	Record map[string]any `json:"record"`
}
