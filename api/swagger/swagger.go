package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Depot API",
        "description": "Self-hosted repository for versioned software artifacts",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Uploads", "description": "Chunked file ingestion"},
        {"name": "Files", "description": "File delivery"},
        {"name": "Permissions", "description": "Per-user file permission rules"},
        {"name": "DownloadLogs", "description": "Delivery audit trail"},
        {"name": "Notifications", "description": "Watcher notification feed"},
        {"name": "Software", "description": "Software catalogue reads"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and receive a token pair",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new token pair",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke the caller's session",
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/uploads/chunk": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Upload one chunk of a file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "uploadId", "in": "formData", "type": "string", "required": true},
                    {"name": "itemType", "in": "formData", "type": "string", "required": true},
                    {"name": "chunkIndex", "in": "formData", "type": "integer", "required": true},
                    {"name": "totalChunks", "in": "formData", "type": "integer", "required": true},
                    {"name": "softwareId", "in": "formData", "type": "string"},
                    {"name": "name", "in": "formData", "type": "string"},
                    {"name": "categoryId", "in": "formData", "type": "string"},
                    {"name": "versionId", "in": "formData", "type": "string"},
                    {"name": "version", "in": "formData", "type": "string"},
                    {"name": "isExternal", "in": "formData", "type": "boolean"},
                    {"name": "externalUrl", "in": "formData", "type": "string"},
                    {"name": "chunk", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Chunk staged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Item committed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure"},
                    "409": {"description": "Integrity conflict"}
                }
            }
        },
        "/files/{itemType}": {
            "get": {
                "tags": ["Files"],
                "summary": "List stored files of one kind visible to the caller",
                "parameters": [
                    {"name": "itemType", "in": "path", "type": "string", "required": true},
                    {"name": "softwareId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown item type"}
                }
            }
        },
        "/files/{itemType}/{id}": {
            "delete": {
                "tags": ["Files"],
                "summary": "Delete a stored item and its file",
                "parameters": [
                    {"name": "itemType", "in": "path", "type": "string", "required": true},
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Unknown item"}
                }
            }
        },
        "/files/{itemType}/{storedName}": {
            "get": {
                "tags": ["Files"],
                "summary": "Download a stored file",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "itemType", "in": "path", "type": "string", "required": true},
                    {"name": "storedName", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File bytes"},
                    "403": {"description": "Download not permitted"},
                    "404": {"description": "Unknown file or external link"}
                }
            }
        },
        "/permissions": {
            "put": {
                "tags": ["Permissions"],
                "summary": "Create or replace a file permission rule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertPermissionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/permissions/{fileType}/{fileId}": {
            "get": {
                "tags": ["Permissions"],
                "summary": "List explicit permission rules of one file",
                "parameters": [
                    {"name": "fileType", "in": "path", "type": "string", "required": true},
                    {"name": "fileId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/permissions/{fileType}/{fileId}/{userId}": {
            "delete": {
                "tags": ["Permissions"],
                "summary": "Delete a permission rule, restoring default allow",
                "parameters": [
                    {"name": "fileType", "in": "path", "type": "string", "required": true},
                    {"name": "fileId", "in": "path", "type": "string", "required": true},
                    {"name": "userId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/download-logs": {
            "get": {
                "tags": ["DownloadLogs"],
                "summary": "List download records",
                "parameters": [
                    {"name": "fileId", "in": "query", "type": "string"},
                    {"name": "fileType", "in": "query", "type": "string"},
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/download-logs/export": {
            "get": {
                "tags": ["DownloadLogs"],
                "summary": "Export download records as CSV or PDF",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rendered export"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List the caller's unread notifications",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing identity"}
                }
            }
        },
        "/software": {
            "get": {
                "tags": ["Software"],
                "summary": "List software products",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/software/{id}": {
            "get": {
                "tags": ["Software"],
                "summary": "Get one software product",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/software/{id}/versions": {
            "get": {
                "tags": ["Software"],
                "summary": "List versions of one software product",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "UpsertPermissionRequest": {
            "type": "object",
            "required": ["user_id", "file_id", "file_type"],
            "properties": {
                "user_id": {"type": "string"},
                "file_id": {"type": "string"},
                "file_type": {"type": "string"},
                "can_view": {"type": "boolean"},
                "can_download": {"type": "boolean"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
