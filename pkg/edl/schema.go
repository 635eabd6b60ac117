package edl

// docSchema is the JSON Schema for the wire exchange format.
// additionalProperties: false at every object level enforces "unknown
// fields are rejected". Fade shape values are not restricted here:
// ParseDocument upper-cases each fade shape before schema validation and
// decoding, and the compiler maps unrecognised shapes to Linear.
const docSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://audio-service.local/schemas/edl.schema.json",
  "type": "object",
  "additionalProperties": false,
  "required": ["id", "sample_rate", "media", "tracks"],
  "properties": {
    "id": {"type": "string"},
    "revision": {"type": "string"},
    "sample_rate": {"type": "integer"},
    "media": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "path"],
        "properties": {
          "id": {"type": "string"},
          "path": {"type": "string"},
          "sample_rate": {"type": "integer"},
          "channels": {"type": "integer"}
        }
      }
    },
    "tracks": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "clips"],
        "properties": {
          "id": {"type": "string"},
          "gain_db": {"type": "number"},
          "muted": {"type": "boolean"},
          "clips": {
            "type": "array",
            "items": {
              "type": "object",
              "additionalProperties": false,
              "required": ["id", "media_id", "start_in_media", "duration", "start_in_timeline"],
              "properties": {
                "id": {"type": "string"},
                "media_id": {"type": "string"},
                "start_in_media": {"type": "integer"},
                "duration": {"type": "integer"},
                "start_in_timeline": {"type": "integer"},
                "gain_db": {"type": "number"},
                "fade_in": {"$ref": "#/$defs/fade"},
                "fade_out": {"$ref": "#/$defs/fade"}
              }
            }
          }
        }
      }
    }
  },
  "$defs": {
    "fade": {
      "type": "object",
      "additionalProperties": false,
      "required": ["duration_samples", "shape"],
      "properties": {
        "duration_samples": {"type": "integer"},
        "shape": {"type": "string"}
      }
    }
  }
}`
