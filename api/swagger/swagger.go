package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Media Moderation API",
        "description": "Asynchronous media moderation pipeline: classifier submissions, verdict callbacks, tiered storage, retry queue, and admin notifications.",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Moderation", "description": "Submission and verdict processing"},
        {"name": "Retry", "description": "Durable retry queue ops surface"},
        {"name": "Notifications", "description": "Admin notification hub"},
        {"name": "Storage", "description": "Tiered file storage"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/v1/media/submit": {
            "post": {
                "tags": ["Moderation"],
                "summary": "Submit media for moderation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitMediaRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/moderation/callback": {
            "post": {
                "tags": ["Moderation"],
                "summary": "Classifier verdict callback",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerdictRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown tracking id"}
                }
            }
        },
        "/api/v1/admin/notifications/stream": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Live notification stream (SSE)",
                "parameters": [
                    {"name": "tenantScope", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Event stream"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/v1/notifications/statistics": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Notification statistics",
                "parameters": [
                    {"name": "tenantSlug", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/storage/statistics": {
            "get": {
                "tags": ["Storage"],
                "summary": "Storage tier statistics",
                "parameters": [
                    {"name": "tenantSlug", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/retry/operations": {
            "post": {
                "tags": ["Retry"],
                "summary": "Enqueue a retry operation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddRetryOperationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/retry/statistics": {
            "get": {
                "tags": ["Retry"],
                "summary": "Retry queue statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SubmitMediaRequest": {
            "type": "object",
            "properties": {
                "tenantSlug": {"type": "string"},
                "filename": {"type": "string"},
                "contextType": {"type": "string"},
                "usageIntent": {"type": "string"},
                "sizeBytes": {"type": "integer"}
            },
            "required": ["tenantSlug", "filename"]
        },
        "VerdictRequest": {
            "type": "object",
            "properties": {
                "trackingId": {"type": "string"},
                "tenantSlug": {"type": "string"},
                "filename": {"type": "string"},
                "moderationStatus": {"type": "string"},
                "moderationScore": {"type": "number"},
                "riskLevel": {"type": "string"},
                "humanReviewRequired": {"type": "boolean"},
                "detectedParts": {"type": "object"},
                "violationTypes": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["trackingId", "moderationStatus"]
        },
        "AddRetryOperationRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "trackingId": {"type": "string"},
                "batchId": {"type": "string"},
                "tenantSlug": {"type": "string"},
                "assetId": {"type": "string"},
                "payload": {"type": "object"},
                "priority": {"type": "string"}
            },
            "required": ["type"]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
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
