package event

// EnvelopeSchema is the JSON Schema every webhook delivery is validated against.
// Recognized kinds must carry the common fields and their own payload; any other
// type only needs to be a non-empty string so new platform events do not fail
// the whole delivery.
const EnvelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["destination", "events"],
  "properties": {
    "destination": { "type": "string" },
    "events": {
      "type": "array",
      "items": { "$ref": "#/definitions/event" }
    }
  },
  "definitions": {
    "source": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "enum": ["user", "group", "room"] },
        "userId": { "type": "string" },
        "groupId": { "type": "string" },
        "roomId": { "type": "string" }
      },
      "allOf": [
        {
          "if": { "properties": { "type": { "const": "group" } } },
          "then": { "required": ["groupId"] }
        },
        {
          "if": { "properties": { "type": { "const": "room" } } },
          "then": { "required": ["roomId"] }
        }
      ]
    },
    "common": {
      "required": ["timestamp", "source", "mode", "webhookEventId", "deliveryContext"],
      "properties": {
        "timestamp": { "type": "integer", "minimum": 0 },
        "source": { "$ref": "#/definitions/source" },
        "mode": { "enum": ["active", "standby"] },
        "webhookEventId": { "type": "string", "minLength": 1 },
        "deliveryContext": {
          "type": "object",
          "required": ["isRedelivery"],
          "properties": {
            "isRedelivery": { "type": "boolean" }
          }
        },
        "replyToken": { "type": "string" }
      }
    },
    "members": {
      "type": "object",
      "required": ["members"],
      "properties": {
        "members": {
          "type": "array",
          "items": { "$ref": "#/definitions/source" }
        }
      }
    },
    "message": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 }
      },
      "allOf": [
        {
          "if": { "properties": { "type": { "const": "text" } } },
          "then": { "required": ["text"], "properties": { "text": { "type": "string" } } }
        },
        {
          "if": { "properties": { "type": { "const": "location" } } },
          "then": {
            "required": ["latitude", "longitude"],
            "properties": {
              "latitude": { "type": "number" },
              "longitude": { "type": "number" }
            }
          }
        },
        {
          "if": { "properties": { "type": { "const": "sticker" } } },
          "then": {
            "required": ["packageId", "stickerId"],
            "properties": {
              "packageId": { "type": "string" },
              "stickerId": { "type": "string" }
            }
          }
        },
        {
          "if": { "properties": { "type": { "const": "file" } } },
          "then": {
            "required": ["fileName"],
            "properties": {
              "fileName": { "type": "string" },
              "fileSize": { "type": "integer" }
            }
          }
        }
      ]
    },
    "event": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "type": "string", "minLength": 1 }
      },
      "allOf": [
        {
          "if": {
            "properties": {
              "type": {
                "enum": ["message", "postback", "follow", "unfollow", "join", "leave",
                         "memberJoined", "memberLeft", "unsend", "beacon", "accountLink",
                         "videoPlayComplete"]
              }
            }
          },
          "then": { "$ref": "#/definitions/common" }
        },
        {
          "if": { "properties": { "type": { "const": "message" } } },
          "then": {
            "required": ["message"],
            "properties": { "message": { "$ref": "#/definitions/message" } }
          }
        },
        {
          "if": { "properties": { "type": { "const": "postback" } } },
          "then": {
            "required": ["postback"],
            "properties": {
              "postback": {
                "type": "object",
                "required": ["data"],
                "properties": {
                  "data": { "type": "string" },
                  "params": { "type": "object" }
                }
              }
            }
          }
        },
        {
          "if": { "properties": { "type": { "const": "memberJoined" } } },
          "then": {
            "required": ["joined"],
            "properties": { "joined": { "$ref": "#/definitions/members" } }
          }
        },
        {
          "if": { "properties": { "type": { "const": "memberLeft" } } },
          "then": {
            "required": ["left"],
            "properties": { "left": { "$ref": "#/definitions/members" } }
          }
        },
        {
          "if": { "properties": { "type": { "const": "unsend" } } },
          "then": {
            "required": ["unsend"],
            "properties": {
              "unsend": {
                "type": "object",
                "required": ["messageId"],
                "properties": { "messageId": { "type": "string", "minLength": 1 } }
              }
            }
          }
        },
        {
          "if": { "properties": { "type": { "const": "beacon" } } },
          "then": {
            "required": ["beacon"],
            "properties": {
              "beacon": {
                "type": "object",
                "required": ["hwid", "type"],
                "properties": {
                  "hwid": { "type": "string" },
                  "type": { "enum": ["enter", "banner", "stay"] },
                  "dm": { "type": "string" }
                }
              }
            }
          }
        },
        {
          "if": { "properties": { "type": { "const": "accountLink" } } },
          "then": {
            "required": ["link"],
            "properties": {
              "link": {
                "type": "object",
                "required": ["result", "nonce"],
                "properties": {
                  "result": { "enum": ["ok", "failed"] },
                  "nonce": { "type": "string" }
                }
              }
            }
          }
        },
        {
          "if": { "properties": { "type": { "const": "videoPlayComplete" } } },
          "then": {
            "required": ["videoPlayComplete"],
            "properties": {
              "videoPlayComplete": {
                "type": "object",
                "required": ["trackingId"],
                "properties": { "trackingId": { "type": "string", "minLength": 1 } }
              }
            }
          }
        }
      ]
    }
  }
}`
