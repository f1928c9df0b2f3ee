// Package docs holds the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/accounts": {
            "get": {
                "operationId": "listAccounts",
                "summary": "List the chart of accounts",
                "tags": [
                    "accounts"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                }
            },
            "post": {
                "operationId": "createAccount",
                "summary": "Add an account under a parent",
                "tags": [
                    "accounts"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "accountapp.CreateAccountRequest"
                        }
                    }
                ]
            }
        },
        "/accounts/{id}": {
            "get": {
                "operationId": "getAccount",
                "summary": "Get an account",
                "tags": [
                    "accounts"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/accounts/{id}/deactivate": {
            "post": {
                "operationId": "deactivateAccount",
                "summary": "Deactivate an account",
                "tags": [
                    "accounts"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/tax/resolve": {
            "post": {
                "operationId": "resolveTaxRule",
                "summary": "Resolve the tax rule of an operation",
                "tags": [
                    "tax"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "taxapp.ResolveRequest"
                        }
                    }
                ]
            }
        },
        "/tax/apply": {
            "post": {
                "operationId": "applyTax",
                "summary": "Compute ICMS, IPI, PIS and COFINS on a base",
                "tags": [
                    "tax"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "taxapp.ApplyRequest"
                        }
                    }
                ]
            }
        },
        "/tax/rules": {
            "get": {
                "operationId": "listTaxRules",
                "summary": "List tax rules",
                "tags": [
                    "tax"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                }
            },
            "post": {
                "operationId": "createTaxRule",
                "summary": "Create a tax rule",
                "tags": [
                    "tax"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "taxapp.CreateRuleRequest"
                        }
                    }
                ]
            }
        },
        "/tax/rules/{id}/deactivate": {
            "post": {
                "operationId": "deactivateTaxRule",
                "summary": "Deactivate a tax rule",
                "tags": [
                    "tax"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/stock/receive": {
            "post": {
                "operationId": "receiveStock",
                "summary": "Receive stock at a unit cost",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "inventoryapp.ReceiveRequest"
                        }
                    }
                ]
            }
        },
        "/stock/opening-balance": {
            "post": {
                "operationId": "openStockBalance",
                "summary": "Book an opening balance",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "inventoryapp.ReceiveRequest"
                        }
                    }
                ]
            }
        },
        "/stock/issue": {
            "post": {
                "operationId": "issueStock",
                "summary": "Issue stock at the moving average cost",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "inventoryapp.IssueRequest"
                        }
                    }
                ]
            }
        },
        "/stock/transfer": {
            "post": {
                "operationId": "transferStock",
                "summary": "Move stock between warehouses",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "inventoryapp.TransferRequest"
                        }
                    }
                ]
            }
        },
        "/stock/transfers/{id}/complete": {
            "post": {
                "operationId": "completeStockTransfer",
                "summary": "Complete an in-transit transfer",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/stock/transfers/{id}/cancel": {
            "post": {
                "operationId": "cancelStockTransfer",
                "summary": "Cancel an in-transit transfer",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/stock/adjust": {
            "post": {
                "operationId": "adjustStock",
                "summary": "Adjust stock to a count or by a delta",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "inventoryapp.AdjustRequest"
                        }
                    }
                ]
            }
        },
        "/stock/block": {
            "post": {
                "operationId": "blockStock",
                "summary": "Block quantity under a hold",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "inventoryapp.BlockRequest"
                        }
                    }
                ]
            }
        },
        "/stock/holds/{id}/release": {
            "post": {
                "operationId": "releaseStockHold",
                "summary": "Release a hold",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/stock/levels": {
            "get": {
                "operationId": "listStockLevels",
                "summary": "List stock levels",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "material_id",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "warehouse_id",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "boolean",
                        "name": "frozen_only",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "integer",
                        "name": "page",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "integer",
                        "name": "page_size",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        },
        "/stock/level": {
            "get": {
                "operationId": "getStockLevel",
                "summary": "Get the level of one stock key",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "material_id",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "warehouse_id",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "batch_id",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        },
        "/stock/movements": {
            "get": {
                "operationId": "listStockMovements",
                "summary": "List movements of one stock key, newest first",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "material_id",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "warehouse_id",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "batch_id",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "integer",
                        "name": "limit",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        },
        "/stock/verify": {
            "get": {
                "operationId": "verifyStockLevel",
                "summary": "Check a level against its movement ledger",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "material_id",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "warehouse_id",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "batch_id",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        },
        "/stock/reconcile": {
            "post": {
                "operationId": "reconcileStockLevel",
                "summary": "Reset a frozen level to its ledger sum",
                "tags": [
                    "stock"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "inventoryapp.ReconcileRequest"
                        }
                    }
                ]
            }
        },
        "/batches": {
            "post": {
                "operationId": "registerBatch",
                "summary": "Register a batch",
                "tags": [
                    "batches"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "inventoryapp.RegisterBatchRequest"
                        }
                    }
                ]
            }
        },
        "/batches/{id}": {
            "get": {
                "operationId": "getBatch",
                "summary": "Get a batch",
                "tags": [
                    "batches"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/journal/entries": {
            "post": {
                "operationId": "createJournalEntry",
                "summary": "Create a draft journal entry",
                "tags": [
                    "journal"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "journalapp.CreateEntryRequest"
                        }
                    }
                ]
            }
        },
        "/journal/entries/{id}": {
            "get": {
                "operationId": "getJournalEntry",
                "summary": "Get a journal entry with its lines",
                "tags": [
                    "journal"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/journal/entries/{id}/post": {
            "post": {
                "operationId": "postJournalEntry",
                "summary": "Post a draft entry",
                "tags": [
                    "journal"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/journal/entries/{id}/reverse": {
            "post": {
                "operationId": "reverseJournalEntry",
                "summary": "Reverse a posted entry",
                "tags": [
                    "journal"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "type": "object",
                            "description": "journalapp.ReverseRequest"
                        }
                    }
                ]
            }
        },
        "/journal/clearings": {
            "post": {
                "operationId": "clearJournalLines",
                "summary": "Clear open lines against each other",
                "tags": [
                    "journal"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "journalapp.ClearRequest"
                        }
                    }
                ]
            }
        },
        "/journal/open-items": {
            "get": {
                "operationId": "listOpenItems",
                "summary": "List uncleared lines of an account and partner",
                "tags": [
                    "journal"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "account_id",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "partner_id",
                        "in": "query",
                        "required": true
                    }
                ]
            }
        },
        "/documents": {
            "post": {
                "operationId": "createDocument",
                "summary": "Create a draft business document",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "postingapp.CreateDocumentRequest"
                        }
                    }
                ]
            },
            "get": {
                "operationId": "listDocuments",
                "summary": "List documents, newest first",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "type",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "status",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "integer",
                        "name": "page",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "integer",
                        "name": "page_size",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "sort_by",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "enum": ["asc", "desc"],
                        "name": "sort_order",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        },
        "/documents/{id}": {
            "get": {
                "operationId": "getDocument",
                "summary": "Get a document with its lines",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            },
            "delete": {
                "operationId": "deleteDocument",
                "summary": "Delete a draft",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/documents/{id}/post": {
            "post": {
                "operationId": "postDocument",
                "summary": "Post a draft document",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/documents/{id}/cancel": {
            "post": {
                "operationId": "cancelDocument",
                "summary": "Cancel a posted document",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "description": "postingapp.CancelRequest"
                        }
                    }
                ]
            }
        },
        "/documents/{id}/payments": {
            "post": {
                "operationId": "registerDocumentPayment",
                "summary": "Settle a posted invoice",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "type": "object",
                            "description": "postingapp.PaymentRequest"
                        }
                    }
                ]
            }
        },
        "/system/jobs": {
            "get": {
                "operationId": "listJobs",
                "summary": "List background jobs",
                "tags": [
                    "system"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                }
            }
        },
        "/system/jobs/{name}/run": {
            "post": {
                "operationId": "runJob",
                "summary": "Run a background job now",
                "tags": [
                    "system"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "name",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/batches/{id}/block": {
            "post": {
                "operationId": "blockBatch",
                "summary": "Block a batch",
                "tags": [
                    "batches"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                }
            }
        },
        "/batches/{id}/expire": {
            "post": {
                "operationId": "expireBatch",
                "summary": "Expire a batch",
                "tags": [
                    "batches"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                }
            }
        },
        "/batches/{id}/consume": {
            "post": {
                "operationId": "consumeBatch",
                "summary": "Mark a batch consumed",
                "tags": [
                    "batches"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                }
            }
        },
        "/batches/{id}/deactivate": {
            "post": {
                "operationId": "deactivateBatch",
                "summary": "Deactivate a batch",
                "tags": [
                    "batches"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "format": "uuid",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "dto.Response": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "data": {},
                "error": {
                    "$ref": "#/definitions/dto.ErrorInfo"
                },
                "meta": {
                    "$ref": "#/definitions/dto.Meta"
                }
            }
        },
        "dto.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "request_id": {
                    "type": "string"
                },
                "details": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.ValidationDetail"
                    }
                }
            }
        },
        "dto.ValidationDetail": {
            "type": "object",
            "properties": {
                "field": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "dto.Meta": {
            "type": "object",
            "properties": {
                "total": {
                    "type": "integer"
                },
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_pages": {
                    "type": "integer"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Posting Core API",
	Description:      "Stock ledger, tax resolution, journal and document posting.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
