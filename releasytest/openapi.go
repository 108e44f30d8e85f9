package releasytest

import (
	"context"
	"net/http"

	"github.com/adamwoolhether/releasy/internal/web/mux"
)

// openAPIDocument describes the routes the Server implements.
const openAPIDocument = `{
  "openapi": "3.0.3",
  "info": {"title": "Releasy", "version": "1.0.0"},
  "components": {
    "securitySchemes": {
      "adminKey": {"type": "apiKey", "in": "header", "name": "x-releasy-admin-key"},
      "apiKey": {"type": "apiKey", "in": "header", "name": "x-releasy-api-key"},
      "operatorJWT": {"type": "http", "scheme": "bearer", "bearerFormat": "JWT"}
    },
    "schemas": {
      "ErrorBody": {
        "type": "object",
        "required": ["error"],
        "properties": {
          "error": {
            "type": "object",
            "required": ["code", "message"],
            "properties": {
              "code": {"type": "string"},
              "message": {"type": "string"},
              "request_id": {"type": "string"},
              "violations": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["field", "code"],
                  "properties": {
                    "field": {"type": "string"},
                    "code": {"type": "string"},
                    "message": {"type": "string"}
                  }
                }
              }
            }
          }
        }
      },
      "HealthResponse": {
        "type": "object",
        "required": ["status"],
        "properties": {"status": {"type": "string"}}
      }
    }
  },
  "paths": {
    "/health": {"get": {"operationId": "health", "responses": {"200": {"description": "healthy", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/HealthResponse"}}}}}}},
    "/live": {"get": {"operationId": "live", "responses": {"200": {"description": "alive"}}}},
    "/ready": {"get": {"operationId": "ready", "responses": {"200": {"description": "ready"}}}},
    "/v1/admin/customers": {
      "get": {"operationId": "listCustomers", "security": [{"adminKey": []}, {"operatorJWT": []}], "responses": {"200": {"description": "customers"}}},
      "post": {"operationId": "createCustomer", "security": [{"adminKey": []}, {"operatorJWT": []}], "responses": {"201": {"description": "created"}, "default": {"description": "error", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/ErrorBody"}}}}}}
    },
    "/v1/admin/customers/{customer_id}": {
      "parameters": [{"name": "customer_id", "in": "path", "required": true, "schema": {"type": "string"}}],
      "get": {"operationId": "getCustomer", "responses": {"200": {"description": "customer"}}},
      "patch": {"operationId": "updateCustomer", "responses": {"200": {"description": "customer"}}}
    },
    "/v1/admin/users": {
      "get": {"operationId": "listUsers", "responses": {"200": {"description": "users"}}},
      "post": {"operationId": "createUser", "responses": {"201": {"description": "created"}}}
    },
    "/v1/releases": {
      "get": {"operationId": "listReleases", "security": [{"apiKey": []}, {"adminKey": []}], "responses": {"200": {"description": "releases"}}},
      "post": {"operationId": "createRelease", "responses": {"201": {"description": "created"}}}
    },
    "/v1/releases/{release_id}/artifacts": {
      "parameters": [{"name": "release_id", "in": "path", "required": true, "schema": {"type": "string"}}],
      "post": {"operationId": "registerArtifact", "responses": {"201": {"description": "registered"}}}
    },
    "/v1/artifacts/{artifact_id}/presign": {
      "parameters": [{"name": "artifact_id", "in": "path", "required": true, "schema": {"type": "string"}}],
      "post": {"operationId": "presignArtifact", "responses": {"200": {"description": "presigned"}, "404": {"description": "unknown artifact"}, "409": {"description": "already uploaded"}}}
    },
    "/v1/downloads/token": {
      "post": {"operationId": "createDownloadToken", "responses": {"200": {"description": "token"}}}
    },
    "/v1/downloads/{token}": {
      "parameters": [{"name": "token", "in": "path", "required": true, "schema": {"type": "string"}}],
      "get": {"operationId": "resolveDownloadToken", "responses": {"302": {"description": "redirect to storage"}}}
    }
  }
}
`

func (s *Server) openAPI(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mux.SetStatus(ctx, http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write([]byte(openAPIDocument))

	return err
}
