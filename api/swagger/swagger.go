package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Vendor Engine API",
        "description": "Agency matching, distribution, fee and budget engine",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Matching", "description": "Agency scoring and the specialization index"},
        {"name": "Ownership", "description": "Candidate ownership registry"},
        {"name": "Distributions", "description": "Job distribution lifecycle and submissions"},
        {"name": "Fees", "description": "Rate card resolution and placement fees"},
        {"name": "Budgets", "description": "Hierarchical budget ledger, forecasts and alerts"},
        {"name": "SLA", "description": "Per-agency SLA thresholds and breaches"}
    ],
    "paths": {
        "/jobs/{jobId}/match": {
            "get": {
                "tags": ["Matching"],
                "summary": "Rank agencies for a job",
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/agencies/{agencyId}/specializations": {
            "put": {
                "tags": ["Matching"],
                "summary": "Replace an agency's specializations",
                "parameters": [
                    {"name": "agencyId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/agencies/{agencyId}/coverage": {
            "put": {
                "tags": ["Matching"],
                "summary": "Replace an agency's geographic coverage",
                "parameters": [
                    {"name": "agencyId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ownership/check": {
            "post": {
                "tags": ["Ownership"],
                "summary": "Check whether a candidate identity is owned",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ownership/{id}/release": {
            "post": {
                "tags": ["Ownership"],
                "summary": "Release an ownership record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/distributions": {
            "get": {
                "tags": ["Distributions"],
                "summary": "List distributions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Distributions"],
                "summary": "Open a distribution",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Exclusivity conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/distributions/{id}": {
            "get": {
                "tags": ["Distributions"],
                "summary": "Get a distribution",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/distributions/{id}/transition": {
            "post": {
                "tags": ["Distributions"],
                "summary": "Move a distribution through its state machine",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/distributions/{id}/submissions": {
            "post": {
                "tags": ["Distributions"],
                "summary": "Submit a candidate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Ownership conflict or cap reached", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs/{jobId}/close": {
            "post": {
                "tags": ["Distributions"],
                "summary": "Complete all live distributions of a job",
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees/calculate": {
            "post": {
                "tags": ["Fees"],
                "summary": "Calculate a placement fee",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No applicable or ambiguous rate line", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees/{id}": {
            "get": {
                "tags": ["Fees"],
                "summary": "Get a placement fee",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees/{id}/post": {
            "post": {
                "tags": ["Fees"],
                "summary": "Deduct a calculated fee from a budget",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Budget exceeded or locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/budgets": {
            "post": {
                "tags": ["Budgets"],
                "summary": "Create a budget node",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/budgets/{id}": {
            "get": {
                "tags": ["Budgets"],
                "summary": "Get a budget node",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/budgets/{id}/transactions": {
            "get": {
                "tags": ["Budgets"],
                "summary": "List ledger transactions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Budgets"],
                "summary": "Post a ledger transaction",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Budget exceeded or locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/budgets/{id}/allocations": {
            "post": {
                "tags": ["Budgets"],
                "summary": "Earmark budget capacity",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/budgets/{id}/utilization": {
            "get": {
                "tags": ["Budgets"],
                "summary": "Get budget utilization",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/budgets/{id}/forecast": {
            "get": {
                "tags": ["Budgets"],
                "summary": "Get the latest stored forecast",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Budgets"],
                "summary": "Compute a spend forecast",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/budgets/{id}/alerts": {
            "get": {
                "tags": ["Budgets"],
                "summary": "List alert thresholds",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Budgets"],
                "summary": "Register an alert threshold",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/budgets/{id}/statement": {
            "get": {
                "tags": ["Budgets"],
                "summary": "Download the ledger as CSV or PDF",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/agencies/{agencyId}/sla/config": {
            "put": {
                "tags": ["SLA"],
                "summary": "Set SLA thresholds for a metric",
                "parameters": [
                    {"name": "agencyId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/agencies/{agencyId}/sla/check": {
            "post": {
                "tags": ["SLA"],
                "summary": "Evaluate a metric value",
                "parameters": [
                    {"name": "agencyId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/agencies/{agencyId}/sla/status": {
            "get": {
                "tags": ["SLA"],
                "summary": "Get per-metric breach status",
                "parameters": [
                    {"name": "agencyId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "per_page": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
