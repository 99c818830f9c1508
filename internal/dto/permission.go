package dto

// UpsertPermissionRequest creates or updates one sparse permission row.
// Nil flags leave the corresponding action allowed.
type UpsertPermissionRequest struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	FileID      string `json:"file_id" validate:"required,uuid"`
	FileType    string `json:"file_type" validate:"required"`
	CanView     *bool  `json:"can_view"`
	CanDownload *bool  `json:"can_download"`
}
