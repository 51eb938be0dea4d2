package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EthicsLine API",
        "description": "Misconduct report intake and case management",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Session", "description": "Reporter session lifecycle"},
        {"name": "Intake", "description": "Report wizard"},
        {"name": "Tracker", "description": "Protocol lookup"},
        {"name": "Authentication", "description": "Reviewer authentication"},
        {"name": "Dashboard", "description": "Reviewer case dashboard"},
        {"name": "Cases", "description": "Case mutations"},
        {"name": "Exports", "description": "Case exports"}
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
                    "200": {"description": "Ready"}
                }
            }
        },
        "/session/bootstrap": {
            "post": {
                "tags": ["Session"],
                "summary": "Bootstrap a reporter session",
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Bootstrap timed out"}
                }
            }
        },
        "/session/policy": {
            "post": {
                "tags": ["Session"],
                "summary": "Accept the reporting policy",
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/session": {
            "delete": {
                "tags": ["Session"],
                "summary": "End the reporter session",
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/intake/options": {
            "get": {
                "tags": ["Intake"],
                "summary": "Intake form options",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/IntakeOptions"}}
                }
            }
        },
        "/intake": {
            "post": {
                "tags": ["Intake"],
                "summary": "Start a new report wizard",
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/WizardState"}},
                    "403": {"description": "Policy not accepted"}
                }
            },
            "get": {
                "tags": ["Intake"],
                "summary": "Current wizard state",
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardState"}}
                }
            }
        },
        "/intake/events": {
            "post": {
                "tags": ["Intake"],
                "summary": "Submit the current step and advance",
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StepEvent"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardState"}},
                    "400": {"description": "Validation failed"}
                }
            }
        },
        "/intake/back": {
            "post": {
                "tags": ["Intake"],
                "summary": "Step back in the wizard",
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardState"}}
                }
            }
        },
        "/intake/submit": {
            "post": {
                "tags": ["Intake"],
                "summary": "Submit the completed report",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "required": true, "type": "string"},
                    {"name": "files", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/SubmitResult"}},
                    "409": {"description": "Duplicate submission"},
                    "504": {"description": "Store write timed out"}
                }
            }
        },
        "/track/{protocol}": {
            "get": {
                "tags": ["Tracker"],
                "summary": "Track a report by protocol",
                "parameters": [
                    {"name": "protocol", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TrackerResult"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate reviewer",
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
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/dashboard/views": {
            "post": {
                "tags": ["Dashboard"],
                "summary": "Open a dashboard view",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ViewState"}}
                }
            }
        },
        "/dashboard/views/{id}": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Current view state",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ViewState"}}
                }
            },
            "delete": {
                "tags": ["Dashboard"],
                "summary": "Close a dashboard view",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/dashboard/views/{id}/filter": {
            "put": {
                "tags": ["Dashboard"],
                "summary": "Update view search and status filter",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FilterRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ViewState"}}
                }
            }
        },
        "/dashboard/views/{id}/selection": {
            "post": {
                "tags": ["Dashboard"],
                "summary": "Toggle case selection",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ViewState"}}
                }
            },
            "delete": {
                "tags": ["Dashboard"],
                "summary": "Delete every selected case",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DeleteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/views/{id}/aggregates": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Aggregated counts for the current listing",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/stream": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Server-sent case events",
                "produces": ["text/event-stream"],
                "responses": {
                    "200": {"description": "Event stream"}
                }
            }
        },
        "/cases/{protocol}/status": {
            "patch": {
                "tags": ["Cases"],
                "summary": "Change case status",
                "parameters": [
                    {"name": "protocol", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatusUpdateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown protocol"}
                }
            }
        },
        "/cases/{protocol}/notes": {
            "post": {
                "tags": ["Cases"],
                "summary": "Append an internal note",
                "parameters": [
                    {"name": "protocol", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases/{protocol}": {
            "delete": {
                "tags": ["Cases"],
                "summary": "Delete a case",
                "parameters": [
                    {"name": "protocol", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DeleteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases/{protocol}/attachment-url": {
            "get": {
                "tags": ["Cases"],
                "summary": "Signed URL for a case attachment",
                "parameters": [
                    {"name": "protocol", "in": "path", "required": true, "type": "string"},
                    {"name": "name", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export cases synchronously",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "200": {"description": "File body"}
                }
            }
        },
        "/exports/jobs": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a case export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/jobs/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File body"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "IntakeOptions": {
            "type": "object",
            "properties": {
                "units": {"type": "array", "items": {"type": "string"}},
                "categories": {"type": "array", "items": {"type": "string"}},
                "minDescriptionLength": {"type": "integer"},
                "maxAttachmentBytes": {"type": "integer"}
            }
        },
        "StepEvent": {
            "type": "object",
            "properties": {
                "classification": {"type": "object"},
                "narrative": {"type": "object"},
                "impact": {"type": "object"},
                "attachments": {"type": "object"},
                "identity": {"type": "object"}
            }
        },
        "WizardState": {
            "type": "object",
            "properties": {
                "step": {"type": "string"},
                "classification": {"type": "object"},
                "narrative": {"type": "object"},
                "impact": {"type": "object"},
                "attachments": {"type": "object"},
                "identity": {"type": "object"}
            }
        },
        "SubmitResult": {
            "type": "object",
            "properties": {
                "protocol": {"type": "string"},
                "attachmentsUploaded": {"type": "integer"},
                "attachmentsExcluded": {"type": "integer"},
                "attachmentsFailed": {"type": "integer"},
                "warning": {"type": "string"}
            }
        },
        "TrackerResult": {
            "type": "object",
            "properties": {
                "found": {"type": "boolean"},
                "protocol": {"type": "string"},
                "status": {"type": "string"},
                "statusLabel": {"type": "string"},
                "unit": {"type": "string"},
                "category": {"type": "string"},
                "attachments": {"type": "integer"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "FilterRequest": {
            "type": "object",
            "properties": {
                "search": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "SelectionRequest": {
            "type": "object",
            "properties": {
                "protocols": {"type": "array", "items": {"type": "string"}},
                "selected": {"type": "boolean"}
            },
            "required": ["protocols"]
        },
        "StatusUpdateRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string"}
            },
            "required": ["status"]
        },
        "NoteRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"}
            },
            "required": ["text"]
        },
        "DeleteRequest": {
            "type": "object",
            "properties": {
                "confirm": {"type": "boolean"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["csv", "html", "pdf"]},
                "status": {"type": "string"},
                "search": {"type": "string"},
                "protocols": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["format"]
        },
        "ViewState": {
            "type": "object",
            "properties": {
                "viewId": {"type": "string"},
                "search": {"type": "string"},
                "status": {"type": "string"},
                "selection": {"type": "array", "items": {"type": "string"}},
                "openCase": {"type": "string"},
                "cases": {"type": "array", "items": {"type": "object"}}
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
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"},
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
