package deepface

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img              string `json:"img"`               // data URL of the frame
	Model            string `json:"model"`             // Facenet yields 128 values
	Detector         string `json:"detector"`          // opencv, retinaface, mtcnn...
	EnforceDetection bool   `json:"enforce_detection"` // 400 when no face
	Align            bool   `json:"align"`
}

// RepresentResponse from POST /represent, one result per detected face
type RepresentResponse struct {
	Results []RepresentResult `json:"results"`
}

type RepresentResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     FacialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}
