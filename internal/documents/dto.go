package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID             string     `json:"documentId"`
	FileName               string     `json:"fileName"`
	OriginalFilename       string     `json:"originalFilename"`
	FileType               string     `json:"fileType"`
	MimeType               string     `json:"mimeType"`
	SizeBytes              int64      `json:"sizeBytes"`
	Status                 Status     `json:"status"`
	DocumentType           string     `json:"documentType,omitempty"`
	DocumentTypeConfidence float64    `json:"documentTypeConfidence"`
	PageCount              int        `json:"pageCount"`
	WordCount              int        `json:"wordCount"`
	ProcessingError        string     `json:"processingError,omitempty"`
	ExtractedText          string     `json:"extractedText,omitempty"`
	ExpiresAt              *time.Time `json:"expiresAt,omitempty"`
	UploadedAt             time.Time  `json:"uploadedAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
	ProcessedAt            *time.Time `json:"processedAt,omitempty"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:             doc.ID,
		FileName:               doc.FileName,
		OriginalFilename:       doc.OriginalFilename,
		FileType:               doc.FileType,
		MimeType:               doc.MimeType,
		SizeBytes:              doc.SizeBytes,
		Status:                 doc.Status,
		DocumentType:           doc.DocumentType,
		DocumentTypeConfidence: doc.DocumentTypeConfidence,
		PageCount:              doc.PageCount,
		WordCount:              doc.WordCount,
		ProcessingError:        doc.ProcessingError,
		ExpiresAt:              doc.ExpiresAt,
		UploadedAt:             doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
		ProcessedAt:            doc.ProcessedAt,
	}
}

// toDetailResponse includes the extracted text.
func toDetailResponse(doc Document) DocumentResponse {
	resp := toResponse(doc)
	resp.ExtractedText = doc.ExtractedText
	return resp
}
