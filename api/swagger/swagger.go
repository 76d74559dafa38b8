// Package swagger registers the OpenAPI document served under /docs.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Booking API",
        "description": "Swimming course requests, payments, enrollments and attendance.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "in": "header",
            "name": "Authorization"
        }
    },
    "tags": [
        {
            "name": "Courses"
        },
        {
            "name": "CourseRequests"
        },
        {
            "name": "Payments"
        },
        {
            "name": "Enrollments"
        },
        {
            "name": "Attendance"
        },
        {
            "name": "SessionProgress"
        },
        {
            "name": "Files"
        },
        {
            "name": "Notifications"
        }
    ],
    "paths": {
        "/courses": {
            "post": {
                "tags": [
                    "Courses"
                ],
                "summary": "Publish a course",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateCourseRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "get": {
                "tags": [
                    "Courses"
                ],
                "summary": "List courses",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "instructor_id",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "page",
                        "type": "integer"
                    },
                    {
                        "in": "query",
                        "name": "page_size",
                        "type": "integer"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": [
                    "Courses"
                ],
                "summary": "Get a course",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Course ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/course-requests": {
            "post": {
                "tags": [
                    "CourseRequests"
                ],
                "summary": "Request enrollment in a course",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "409": {
                        "description": "Active request exists",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateCourseRequestInput"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/course-requests/mine": {
            "get": {
                "tags": [
                    "CourseRequests"
                ],
                "summary": "List the caller's course requests",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/course-requests/pending": {
            "get": {
                "tags": [
                    "CourseRequests"
                ],
                "summary": "List requests awaiting approval",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/course-requests/{id}": {
            "get": {
                "tags": [
                    "CourseRequests"
                ],
                "summary": "Get a course request",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Request ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/course-requests/{id}/approve": {
            "patch": {
                "tags": [
                    "CourseRequests"
                ],
                "summary": "Approve a pending request",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "409": {
                        "description": "Not pending approval",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Request ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/course-requests/{id}/reject": {
            "patch": {
                "tags": [
                    "CourseRequests"
                ],
                "summary": "Reject a pending request",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "409": {
                        "description": "Not pending approval",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Request ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RejectCourseRequestInput"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/checkout-session": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Open a payment page for an approved request",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "409": {
                        "description": "Live booking exists",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "502": {
                        "description": "Provider failure",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CheckoutSessionInput"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/webhook": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Receive payment provider notifications",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "400": {
                        "description": "Bad signature or payload",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "500": {
                        "description": "Retry later",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "502": {
                        "description": "Provider lookup failed",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                }
            }
        },
        "/bookings/{id}": {
            "get": {
                "tags": [
                    "Payments"
                ],
                "summary": "Get a booking",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Booking ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollments/mine": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "List the caller's enrollments",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollments/teaching": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "List enrollments in the caller's courses",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Get an enrollment",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Enrollment ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollments/{id}/attendance": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Record or overwrite attendance for a session",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "409": {
                        "description": "Enrollment not active",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Enrollment ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RecordAttendanceInput"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "get": {
                "tags": [
                    "Attendance"
                ],
                "summary": "List attendance for an enrollment",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Enrollment ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollments/{id}/attendance/excuse": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Excuse an upcoming session",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "400": {
                        "description": "Excuse limit reached",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "409": {
                        "description": "Already recorded",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Enrollment ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ExcuseInput"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollments/{id}/attendance/export": {
            "get": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Download attendance as csv, pdf or xlsx",
                "produces": [
                    "text/csv",
                    "application/pdf",
                    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Enrollment ID"
                    },
                    {
                        "in": "query",
                        "name": "format",
                        "type": "string",
                        "enum": [
                            "csv",
                            "pdf",
                            "xlsx"
                        ]
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File",
                        "schema": {
                            "type": "file"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollments/{id}/progress": {
            "put": {
                "tags": [
                    "SessionProgress"
                ],
                "summary": "Write notes for a session",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Enrollment ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpsertSessionProgressInput"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "get": {
                "tags": [
                    "SessionProgress"
                ],
                "summary": "List session notes for an enrollment",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Enrollment ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/progress/{id}": {
            "get": {
                "tags": [
                    "SessionProgress"
                ],
                "summary": "Get one session note",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Progress ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "patch": {
                "tags": [
                    "SessionProgress"
                ],
                "summary": "Edit a session note",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Progress ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateSessionProgressInput"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/progress/{id}/attachment": {
            "post": {
                "tags": [
                    "SessionProgress"
                ],
                "summary": "Attach a photo or video to a session note",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    },
                    "400": {
                        "description": "Unsupported or oversized file",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Progress ID"
                    },
                    {
                        "in": "formData",
                        "name": "file",
                        "type": "file",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "multipart/form-data"
                ]
            }
        },
        "/files/{token}": {
            "get": {
                "tags": [
                    "Files"
                ],
                "summary": "Download a signed attachment",
                "parameters": [
                    {
                        "in": "path",
                        "name": "token",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "404": {
                        "description": "Expired or unknown"
                    }
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": [
                    "Notifications"
                ],
                "summary": "List the caller's notifications",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/Envelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "unread",
                        "type": "boolean"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/notifications/{id}/read": {
            "patch": {
                "tags": [
                    "Notifications"
                ],
                "summary": "Mark a notification read",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Notification ID"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No content"
                    },
                    "404": {
                        "description": "Not found"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
            }
        },
        "CreateCourseRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "instructor_id": {
                    "type": "string"
                },
                "price": {
                    "type": "integer"
                },
                "total_sessions": {
                    "type": "integer"
                },
                "absence_buffer": {
                    "type": "integer"
                },
                "schedule": {
                    "type": "object",
                    "description": "weekday to list of HH:MM-HH:MM ranges",
                    "example": {
                        "monday": [
                            "10:00-12:00"
                        ]
                    }
                },
                "level": {
                    "type": "string"
                },
                "location": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "max_students": {
                    "type": "integer"
                }
            },
            "required": [
                "name",
                "total_sessions",
                "schedule"
            ]
        },
        "Slot": {
            "type": "object",
            "properties": {
                "day_of_week": {
                    "type": "string"
                },
                "start_time": {
                    "type": "string"
                },
                "end_time": {
                    "type": "string"
                }
            }
        },
        "CreateCourseRequestInput": {
            "type": "object",
            "properties": {
                "course_id": {
                    "type": "string"
                },
                "start_date": {
                    "type": "string",
                    "format": "date"
                },
                "selected_slots": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/Slot"
                    }
                },
                "selected_slot": {
                    "type": "string",
                    "description": "deprecated day:HH:MM-HH:MM"
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "course_id",
                "start_date"
            ]
        },
        "RejectCourseRequestInput": {
            "type": "object",
            "properties": {
                "reason": {
                    "type": "string"
                }
            }
        },
        "CheckoutSessionInput": {
            "type": "object",
            "properties": {
                "request_id": {
                    "type": "string"
                }
            },
            "required": [
                "request_id"
            ]
        },
        "RecordAttendanceInput": {
            "type": "object",
            "properties": {
                "session_number": {
                    "type": "integer"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "PRESENT",
                        "ABSENT",
                        "LATE",
                        "EXCUSED"
                    ]
                },
                "reason": {
                    "type": "string"
                },
                "session_date": {
                    "type": "string",
                    "format": "date"
                }
            },
            "required": [
                "session_number",
                "status",
                "session_date"
            ]
        },
        "ExcuseInput": {
            "type": "object",
            "properties": {
                "session_number": {
                    "type": "integer"
                },
                "reason": {
                    "type": "string"
                },
                "session_date": {
                    "type": "string",
                    "format": "date"
                }
            },
            "required": [
                "session_number",
                "reason",
                "session_date"
            ]
        },
        "UpsertSessionProgressInput": {
            "type": "object",
            "properties": {
                "session_number": {
                    "type": "integer"
                },
                "topic_covered": {
                    "type": "string"
                },
                "performance_notes": {
                    "type": "string"
                },
                "session_date": {
                    "type": "string",
                    "format": "date"
                }
            },
            "required": [
                "session_number",
                "session_date"
            ]
        },
        "UpdateSessionProgressInput": {
            "type": "object",
            "properties": {
                "topic_covered": {
                    "type": "string"
                },
                "performance_notes": {
                    "type": "string"
                },
                "session_date": {
                    "type": "string",
                    "format": "date"
                }
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
