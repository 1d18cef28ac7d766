// Package docs holds the Swagger description of the artsearch HTTP API,
// registered with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/search/image-url": {
            "post": {
                "description": "Embeds the image at the given URL and returns the most similar artworks",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["search"],
                "summary": "Search by image URL",
                "parameters": [
                    {
                        "description": "Image URL and result count",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/dto.ImageURLRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SearchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        },
        "/search/image-stream": {
            "post": {
                "description": "Embeds an uploaded image, sent as the raw body or as a single multipart file, and returns the most similar artworks",
                "consumes": ["application/octet-stream", "image/png", "image/jpeg", "image/gif", "multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["search"],
                "summary": "Search by uploaded image",
                "parameters": [
                    {"type": "integer", "description": "Number of results", "name": "top", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SearchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        },
        "/search/text": {
            "post": {
                "description": "Embeds the text into the image vector space and returns the artworks whose images match it best",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["search"],
                "summary": "Search images by text",
                "parameters": [
                    {
                        "description": "Query text and result count",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/dto.TextRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SearchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        },
        "/search/description": {
            "post": {
                "description": "Searches the catalogue description index",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["search"],
                "summary": "Search descriptions",
                "parameters": [
                    {
                        "description": "Query text and result count",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/dto.TextRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SearchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "artwork.Match": {
            "type": "object",
            "properties": {
                "objectId": {"type": "string"},
                "accessionNum": {"type": "string"},
                "title": {"type": "string"},
                "attribution": {"type": "string"},
                "displayDate": {"type": "string"},
                "locationDescription": {"type": "string"},
                "medium": {"type": "string"},
                "dimensions": {"type": "string"},
                "imageUrl": {"type": "string"},
                "searchScore": {"type": "number"}
            }
        },
        "dto.ImageURLRequest": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "top": {"type": "integer"}
            }
        },
        "dto.TextRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "top": {"type": "integer"}
            }
        },
        "dto.SearchResponse": {
            "type": "object",
            "properties": {
                "similarImages": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/artwork.Match"}
                }
            }
        },
        "middleware.ErrorObject": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "title": {"type": "string"},
                "detail": {"type": "string"},
                "id": {"type": "string"}
            }
        },
        "middleware.ErrorResponse": {
            "type": "object",
            "properties": {
                "errors": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/middleware.ErrorObject"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Artsearch API",
	Description:      "Image similarity search over museum collections.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
