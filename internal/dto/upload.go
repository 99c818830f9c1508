package dto

// ChunkUploadRequest binds the multipart form fields accompanying one chunk.
// Metadata fields are only validated on the final chunk; non-final chunks may
// repeat or omit them.
type ChunkUploadRequest struct {
	UploadID    string `form:"uploadId" validate:"required"`
	ItemType    string `form:"itemType" validate:"required"`
	ChunkIndex  int    `form:"chunkIndex"`
	TotalChunks int    `form:"totalChunks" validate:"required,min=1"`

	UploadMetadata
}

// UploadMetadata carries the item-type-specific fields; which of them are
// required depends on the content kind and is enforced by the registrar.
type UploadMetadata struct {
	SoftwareID  string `form:"softwareId"`
	Name        string `form:"name"`
	CategoryID  string `form:"categoryId"`
	VersionID   string `form:"versionId"`
	Version     string `form:"version"`
	IsExternal  bool   `form:"isExternal"`
	ExternalURL string `form:"externalUrl"`
}

// ChunkAck acknowledges a non-final chunk.
type ChunkAck struct {
	UploadID  string `json:"upload_id"`
	Received  int    `json:"received"`
	Remaining int    `json:"remaining"`
}
