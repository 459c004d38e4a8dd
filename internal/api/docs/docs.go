// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package docs holds the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "AGPL-3.0-or-later",
            "url": "https://www.gnu.org/licenses/agpl-3.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/interactions": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Interactions"],
                "summary": "Record an interaction",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/api.RecordInteractionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/v1/interactions/export": {
            "get": {
                "produces": ["application/json", "application/x-ndjson"],
                "tags": ["Interactions"],
                "summary": "Export training records",
                "parameters": [
                    {"type": "integer", "description": "Exclusive start cursor", "name": "cursor", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "string", "description": "json or ndjson", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/v1/training": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Training"],
                "summary": "Start training",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/api.TrainRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "409": {"description": "Training already in progress or tag taken", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/v1/training/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Training"],
                "summary": "Training status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}
            }
        },
        "/api/v1/training/cancel": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Training"],
                "summary": "Cancel training",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}
            }
        },
        "/api/v1/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Models"],
                "summary": "List model versions",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}
            }
        },
        "/api/v1/models/active": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Models"],
                "summary": "Active model version",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/v1/models/{tag}/activate": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Models"],
                "summary": "Activate a model version",
                "parameters": [
                    {"type": "string", "description": "Version tag", "name": "tag", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/v1/recommendations/homepage": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Recommendations"],
                "summary": "Homepage recommendations",
                "parameters": [
                    {"type": "integer", "description": "Number of products", "name": "count", "in": "query"},
                    {"type": "string", "description": "Comma-separated product IDs to leave out", "name": "exclude", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/v1/recommendations/similar/{productId}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Recommendations"],
                "summary": "Similar products",
                "parameters": [
                    {"type": "integer", "description": "Seed product", "name": "productId", "in": "path", "required": true},
                    {"type": "integer", "description": "Number of products", "name": "count", "in": "query"},
                    {"type": "string", "description": "Comma-separated product IDs to leave out", "name": "exclude", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/health/live": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.RecordInteractionRequest": {
            "type": "object",
            "required": ["interactionType", "productId"],
            "properties": {
                "interactionType": {"type": "string", "enum": ["CLICK", "ADD_TO_CART", "PURCHASE"]},
                "productId": {"type": "integer"},
                "userId": {"type": "integer"}
            }
        },
        "api.TrainRequest": {
            "type": "object",
            "required": ["force_retrain_all"],
            "properties": {
                "force_retrain_all": {"type": "boolean"},
                "model_version_tag": {"type": "string", "maxLength": 255}
            }
        },
        "models.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true},
                "message": {"type": "string"}
            }
        },
        "models.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/models.APIError"},
                "metadata": {"$ref": "#/definitions/models.Metadata"},
                "status": {"type": "string"}
            }
        },
        "models.Metadata": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "",
	Schemes:          []string{},
	Title:            "Signalcart API",
	Description:      "Storefront interaction recording, model training and recommendations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
