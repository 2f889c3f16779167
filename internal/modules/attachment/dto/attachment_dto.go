package dto

type UploadAttachmentResponse struct {
	FileURL  string `json:"file_url"`
	MimeType string `json:"mime_type"`
}

type AttachmentInput struct {
	FileURL  string `json:"file_url" binding:"required,url,max=2048"`
	MimeType string `json:"mime_type" binding:"required,max=100"`
}

type AttachmentResponse struct {
	ID       uint   `json:"id"`
	FileURL  string `json:"file_url"`
	MimeType string `json:"mime_type"`
}
