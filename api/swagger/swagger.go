package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Score App API",
        "description": "Course scoring, attendance and performance backend",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Registration, login and verification"},
        {"name": "Users", "description": "User administration"},
        {"name": "Courses", "description": "Course, module and lesson management"},
        {"name": "Enrollments", "description": "Student enrollment lifecycle"},
        {"name": "Scores", "description": "Score columns and bulk score recording"},
        {"name": "Attendance", "description": "Attendance marking and reports"},
        {"name": "Reviews", "description": "Course reviews and ratings"},
        {"name": "Tutors", "description": "Tutor course assignments"},
        {"name": "Performance", "description": "Aggregated student performance"}
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
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a new account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new token pair",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/verification/request": {
            "post": {
                "tags": ["Auth"],
                "summary": "Request an email or SMS verification code",
                "responses": {
                    "202": {"description": "Accepted"}
                }
            }
        },
        "/auth/verification/confirm": {
            "post": {
                "tags": ["Auth"],
                "summary": "Confirm a verification code",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "published", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create a course",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get a course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Courses"],
                "summary": "Update a course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete a course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student in a course",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/columns": {
            "get": {
                "tags": ["Scores"],
                "summary": "List score columns for a scope",
                "parameters": [
                    {"name": "lessonId", "in": "query", "type": "string"},
                    {"name": "moduleId", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Scores"],
                "summary": "Reconcile the column set for a scope",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/bulk": {
            "post": {
                "tags": ["Scores"],
                "summary": "Bulk record scores for a lesson",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkScoresRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/bulk": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Bulk mark attendance for a lesson",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/performance/students/{id}": {
            "get": {
                "tags": ["Performance"],
                "summary": "Aggregated performance for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"},
                "phone": {"type": "string"},
                "role": {"type": "string"}
            },
            "required": ["email", "password", "full_name"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "BulkScoresRequest": {
            "type": "object",
            "properties": {
                "lesson_id": {"type": "string"},
                "columns": {"type": "array", "items": {"$ref": "#/definitions/ColumnEntry"}},
                "students": {"type": "array", "items": {"$ref": "#/definitions/StudentScores"}}
            },
            "required": ["lesson_id", "columns", "students"]
        },
        "ColumnEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "kind": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "max_score": {"type": "number"},
                "weight": {"type": "number"},
                "position": {"type": "integer"},
                "is_required": {"type": "boolean"}
            },
            "required": ["kind", "title", "max_score"]
        },
        "StudentScores": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "string"},
                "student_id": {"type": "string"},
                "scores": {"type": "array", "items": {"$ref": "#/definitions/ScoreEntry"}}
            }
        },
        "ScoreEntry": {
            "type": "object",
            "properties": {
                "column_id": {"type": "string"},
                "points": {"type": "number"},
                "remarks": {"type": "string"}
            },
            "required": ["column_id"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
