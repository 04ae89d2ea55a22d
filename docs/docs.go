// Package docs 注册 swagger 文档, 由 gin-swagger 在 /swagger/ 下提供
// 修改接口时同步更新 docTemplate
package docs

import "github.com/swaggo/swag"

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
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["认证"],
                "summary": "用户注册",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.RegisterRequest"}}
                ],
                "responses": {
                    "200": {"description": "注册成功", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "400": {"description": "参数错误", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "409": {"description": "用户名或邮箱已存在", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["认证"],
                "summary": "用户登录",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "返回 JWT", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "401": {"description": "用户名或密码不正确", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["用户"],
                "summary": "当前用户概况",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "401": {"description": "未认证", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "404": {"description": "用户不存在", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/files": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["文件"],
                "summary": "上传文件",
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "enum": ["private", "password_protected", "public"], "name": "visibility", "in": "formData"},
                    {"type": "string", "name": "password", "in": "formData"},
                    {"type": "string", "format": "date-time", "name": "expires_at", "in": "formData"},
                    {"type": "integer", "name": "download_limit", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "上传成功", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "400": {"description": "参数错误", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "502": {"description": "存储服务失败", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/files/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["文件"],
                "summary": "当前用户的文件统计",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/files/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["文件"],
                "summary": "删除文件及其分享和访问日志",
                "parameters": [{"$ref": "#/parameters/fileID"}],
                "responses": {
                    "200": {"description": "已删除", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "403": {"description": "非文件所有者", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "404": {"description": "文件不存在", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/files/{id}/metadata": {
            "get": {
                "produces": ["application/json"],
                "tags": ["文件"],
                "summary": "查询文件元数据及当前调用方能否下载",
                "parameters": [{"$ref": "#/parameters/fileID"}, {"$ref": "#/parameters/passwordHeader"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "404": {"description": "文件不存在", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["文件"],
                "summary": "修改访问策略",
                "parameters": [
                    {"$ref": "#/parameters/fileID"},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateMetadataRequest"}}
                ],
                "responses": {
                    "200": {"description": "已更新", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "400": {"description": "参数错误或过期时间无效", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "403": {"description": "非文件所有者", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/files/{id}/visibility": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["文件"],
                "summary": "修改可见性",
                "parameters": [
                    {"$ref": "#/parameters/fileID"},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateVisibilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "已更新", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "400": {"description": "参数错误", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/files/{id}/download": {
            "get": {
                "produces": ["application/octet-stream"],
                "tags": ["文件"],
                "summary": "下载文件, 匿名调用方受可见性、密码、过期时间与下载次数约束",
                "parameters": [
                    {"$ref": "#/parameters/fileID"},
                    {"$ref": "#/parameters/passwordHeader"},
                    {"type": "string", "name": "password", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "文件内容", "schema": {"type": "file"}},
                    "403": {"description": "拒绝访问, data.reason 为拒绝原因", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "404": {"description": "文件不存在", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/files/{id}/access-logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["审计"],
                "summary": "成功访问日志",
                "parameters": [{"$ref": "#/parameters/fileID"}, {"$ref": "#/parameters/page"}, {"$ref": "#/parameters/limit"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/files/{id}/failed-logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["审计"],
                "summary": "失败访问日志",
                "parameters": [{"$ref": "#/parameters/fileID"}, {"$ref": "#/parameters/page"}, {"$ref": "#/parameters/limit"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/files/{id}/shares": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["分享"],
                "summary": "文件的分享链接列表",
                "parameters": [{"$ref": "#/parameters/fileID"}, {"$ref": "#/parameters/page"}, {"$ref": "#/parameters/limit"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/shares": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["分享"],
                "summary": "创建分享链接并通知接收人",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateShareRequest"}}
                ],
                "responses": {
                    "201": {"description": "已创建, 通知失败时 code 为 20001", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "400": {"description": "参数错误", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "409": {"description": "超过文件剩余下载次数", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/shares/{token}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["分享"],
                "summary": "查询分享信息",
                "parameters": [{"$ref": "#/parameters/token"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "404": {"description": "分享链接已失效", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/shares/{token}/download": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/octet-stream"],
                "tags": ["分享"],
                "summary": "通过分享链接下载, 成功后扣减一次",
                "parameters": [
                    {"$ref": "#/parameters/token"},
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/handlers.ShareAccessRequest"}}
                ],
                "responses": {
                    "200": {"description": "文件内容", "schema": {"type": "file"}},
                    "403": {"description": "密码错误", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "404": {"description": "分享链接已失效", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        },
        "/shares/{token}/preview": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["image/png", "application/pdf"],
                "tags": ["分享"],
                "summary": "带接收人水印的预览",
                "parameters": [
                    {"$ref": "#/parameters/token"},
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/handlers.ShareAccessRequest"}}
                ],
                "responses": {
                    "200": {"description": "预览内容", "schema": {"type": "file"}},
                    "404": {"description": "分享链接已失效", "schema": {"$ref": "#/definitions/xerr.Response"}},
                    "415": {"description": "不支持预览的文件类型", "schema": {"$ref": "#/definitions/xerr.Response"}}
                }
            }
        }
    },
    "parameters": {
        "fileID": {"type": "string", "name": "id", "in": "path", "required": true, "description": "文件 ID"},
        "token": {"type": "string", "name": "token", "in": "path", "required": true, "description": "分享 token"},
        "passwordHeader": {"type": "string", "name": "X-File-Password", "in": "header", "description": "访问密码"},
        "page": {"type": "integer", "default": 1, "name": "page", "in": "query"},
        "limit": {"type": "integer", "default": 10, "name": "limit", "in": "query"}
    },
    "definitions": {
        "xerr.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {}
            }
        },
        "handlers.RegisterRequest": {
            "type": "object",
            "required": ["username", "password", "email"],
            "properties": {
                "username": {"type": "string", "minLength": 3, "maxLength": 64},
                "password": {"type": "string", "minLength": 6, "maxLength": 255},
                "email": {"type": "string"}
            }
        },
        "handlers.LoginRequest": {
            "type": "object",
            "required": ["identifier", "password"],
            "properties": {
                "identifier": {"type": "string", "description": "用户名或邮箱"},
                "password": {"type": "string"}
            }
        },
        "handlers.UpdateMetadataRequest": {
            "type": "object",
            "properties": {
                "visibility": {"type": "string", "enum": ["private", "password_protected", "public"]},
                "password": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"},
                "download_limit": {"type": "integer", "description": "null 表示不限次数"}
            }
        },
        "handlers.UpdateVisibilityRequest": {
            "type": "object",
            "required": ["visibility"],
            "properties": {
                "visibility": {"type": "string", "enum": ["private", "password_protected", "public"]},
                "password": {"type": "string"}
            }
        },
        "handlers.CreateShareRequest": {
            "type": "object",
            "required": ["file_id", "email", "expires_at", "max_download"],
            "properties": {
                "file_id": {"type": "string"},
                "email": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"},
                "max_download": {"type": "integer", "minimum": 0},
                "note": {"type": "string", "maxLength": 1000}
            }
        },
        "handlers.ShareAccessRequest": {
            "type": "object",
            "properties": {
                "password": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "go-fileshare API",
	Description:      "文件访问控制与安全分享服务",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
