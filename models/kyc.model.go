package models

// KYCDocumentKind names the identity documents an agent can attach.
type KYCDocumentKind string

const (
	DocumentPAN     KYCDocumentKind = "PAN"
	DocumentAddress KYCDocumentKind = "ADDRESS_PROOF"
	DocumentPhoto   KYCDocumentKind = "PHOTO"
)

// KYCDocument is the stored reference to an accepted upload.
type KYCDocument struct {
	Kind     KYCDocumentKind `json:"kind"`
	FileName string          `json:"fileName"`
	Path     string          `json:"path,omitempty"`
	MIMEType string          `json:"mimeType"`
	Size     int64           `json:"size"`
}
