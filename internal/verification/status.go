package verification

import "github.com/saturnino-fabrica-de-software/ponto/internal/domain"

// transitions lists the allowed moves out of each status. Terminal statuses
// have no entry.
var transitions = map[domain.SessionStatus][]domain.SessionStatus{
	domain.StatusScanning: {
		domain.StatusUploading,
		domain.StatusFail,
		domain.StatusError,
	},
	domain.StatusUploading: {
		domain.StatusSuccess,
		domain.StatusFail,
		domain.StatusError,
	},
}

func canTransition(from, to domain.SessionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
