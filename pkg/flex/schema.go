package flex

// Schema describes the JSON accepted by Validate: a flex message, or a bare
// bubble or carousel as produced by the Flex Message Simulator.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": { "enum": ["flex", "bubble", "carousel"] }
  },
  "allOf": [
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "flex" } } },
      "then": {
        "required": ["altText", "contents"],
        "properties": {
          "altText": { "type": "string", "minLength": 1, "maxLength": 1500 },
          "contents": { "$ref": "#/definitions/container" }
        }
      }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "bubble" } } },
      "then": { "$ref": "#/definitions/bubble" }
    },
    {
      "if": { "required": ["type"], "properties": { "type": { "const": "carousel" } } },
      "then": { "$ref": "#/definitions/carousel" }
    }
  ],
  "definitions": {
    "action": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "enum": ["uri", "message", "postback"] },
        "label": { "type": "string", "maxLength": 40 }
      },
      "allOf": [
        {
          "if": { "required": ["type"], "properties": { "type": { "const": "uri" } } },
          "then": { "required": ["uri"], "properties": { "uri": { "type": "string", "minLength": 1 } } }
        },
        {
          "if": { "required": ["type"], "properties": { "type": { "const": "message" } } },
          "then": { "required": ["text"], "properties": { "text": { "type": "string", "minLength": 1 } } }
        },
        {
          "if": { "required": ["type"], "properties": { "type": { "const": "postback" } } },
          "then": { "required": ["data"], "properties": { "data": { "type": "string", "minLength": 1 } } }
        }
      ]
    },
    "component": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "enum": ["box", "text", "button", "image", "separator", "spacer"] },
        "action": { "$ref": "#/definitions/action" }
      },
      "allOf": [
        {
          "if": { "required": ["type"], "properties": { "type": { "const": "box" } } },
          "then": { "$ref": "#/definitions/box" }
        },
        {
          "if": { "required": ["type"], "properties": { "type": { "const": "text" } } },
          "then": { "required": ["text"], "properties": { "text": { "type": "string" } } }
        },
        {
          "if": { "required": ["type"], "properties": { "type": { "const": "button" } } },
          "then": { "required": ["action"] }
        },
        {
          "if": { "required": ["type"], "properties": { "type": { "const": "image" } } },
          "then": { "required": ["url"], "properties": { "url": { "type": "string", "minLength": 1 } } }
        }
      ]
    },
    "box": {
      "type": "object",
      "required": ["type", "layout", "contents"],
      "properties": {
        "type": { "const": "box" },
        "layout": { "enum": ["horizontal", "vertical", "baseline"] },
        "contents": {
          "type": "array",
          "items": { "$ref": "#/definitions/component" }
        },
        "action": { "$ref": "#/definitions/action" }
      }
    },
    "bubble": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "const": "bubble" },
        "header": { "$ref": "#/definitions/box" },
        "hero": { "$ref": "#/definitions/component" },
        "body": { "$ref": "#/definitions/box" },
        "footer": { "$ref": "#/definitions/box" },
        "action": { "$ref": "#/definitions/action" }
      }
    },
    "carousel": {
      "type": "object",
      "required": ["type", "contents"],
      "properties": {
        "type": { "const": "carousel" },
        "contents": {
          "type": "array",
          "minItems": 1,
          "maxItems": 12,
          "items": { "$ref": "#/definitions/bubble" }
        }
      }
    },
    "container": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "enum": ["bubble", "carousel"] }
      },
      "allOf": [
        {
          "if": { "required": ["type"], "properties": { "type": { "const": "bubble" } } },
          "then": { "$ref": "#/definitions/bubble" }
        },
        {
          "if": { "required": ["type"], "properties": { "type": { "const": "carousel" } } },
          "then": { "$ref": "#/definitions/carousel" }
        }
      ]
    }
  }
}`
