package domain

import "time"

// DescriptorLength is the number of elements in a face descriptor.
const DescriptorLength = 128

// Descriptor representa o vetor biométrico extraído de uma face.
// Anything that is not exactly DescriptorLength long is treated as absent.
type Descriptor []float64

// WellFormed reports whether the descriptor can take part in a comparison.
func (d Descriptor) WellFormed() bool {
	return len(d) == DescriptorLength
}

// Clone returns an independent copy so sessions never share backing arrays.
func (d Descriptor) Clone() Descriptor {
	if d == nil {
		return nil
	}
	out := make(Descriptor, len(d))
	copy(out, d)
	return out
}

// Subject is the person being verified.
type Subject struct {
	ID                 string `json:"id"`
	Name               string `json:"name,omitempty"`
	EnrollmentImageURL string `json:"image_url"`
}

// ReferenceDescriptor is an enrollment descriptor persisted across sessions.
type ReferenceDescriptor struct {
	SubjectID  string     `json:"subject_id"`
	ImageURL   string     `json:"image_url"`
	Descriptor Descriptor `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt time.Time  `json:"last_used_at"`
}
