package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Docspace Session API",
        "description": "Cookie based dual-token sessions: login, reissue, revocation and account lifecycle",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, reissue and logout"},
        {"name": "Account", "description": "Account lifecycle that ends every session"}
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
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate with email and password",
                "description": "Sets the access_token and refresh_token HttpOnly cookies. Token strings never appear in the body.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoginEnvelope"}},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "INVALID_CREDENTIALS", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "ACCOUNT_INACTIVE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "SERVICE_UNAVAILABLE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Reissue the access token from the refresh cookie",
                "description": "The refresh cookie is replaced only when the refresh token is close to expiry.",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReissueEnvelope"}},
                    "401": {"description": "TOKEN_INVALID, both cookies cleared", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "SERVICE_UNAVAILABLE, cookies untouched", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "End the current session",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "TOKEN_INVALID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/logout-all": {
            "post": {
                "tags": ["Authentication"],
                "summary": "End every session of the current user",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "TOKEN_INVALID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "TOKEN_INVALID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/sessions": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Active refresh sessions of the current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SessionsEnvelope"}},
                    "401": {"description": "TOKEN_INVALID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/account/deactivate": {
            "post": {
                "tags": ["Account"],
                "summary": "Deactivate the current account and revoke all of its tokens",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "TOKEN_INVALID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/account": {
            "delete": {
                "tags": ["Account"],
                "summary": "Delete the current account with all of its tokens",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "TOKEN_INVALID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "format": "email"},
                "password": {"type": "string"}
            }
        },
        "UserInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "full_name": {"type": "string"}
            }
        },
        "LoginResponse": {
            "type": "object",
            "properties": {
                "token_type": {"type": "string", "example": "cookie"},
                "access_expires_at": {"type": "string", "format": "date-time"},
                "refresh_expires_at": {"type": "string", "format": "date-time"},
                "user": {"$ref": "#/definitions/UserInfo"}
            }
        },
        "ReissueResponse": {
            "type": "object",
            "properties": {
                "token_type": {"type": "string", "example": "cookie"},
                "access_expires_at": {"type": "string", "format": "date-time"},
                "refresh_expires_at": {"type": "string", "format": "date-time"},
                "refresh_rotated": {"type": "boolean"}
            }
        },
        "SessionInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_agent": {"type": "string"},
                "ip_address": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "LoginEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/LoginResponse"}
            }
        },
        "ReissueEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ReissueResponse"}
            }
        },
        "SessionsEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/SessionInfo"}},
                "meta": {"type": "object"}
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
