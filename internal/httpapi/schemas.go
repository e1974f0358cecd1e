package httpapi

var (
	ttsSchema = compileSchema(`{
		"type": "object",
		"required": ["text"],
		"properties": {
			"text": {"type": "string", "minLength": 1, "maxLength": 500},
			"voice": {"type": "string"}
		}
	}`)

	pronounceSchema = compileSchema(`{
		"type": "object",
		"required": ["word"],
		"properties": {
			"word": {"type": "string", "minLength": 1, "maxLength": 60},
			"context": {"type": "string"},
			"language": {"type": "string"},
			"accentGoal": {"type": "string"}
		}
	}`)

	sessionScoreSchema = compileSchema(`{
		"type": "object",
		"required": ["lyrics", "audioBase64"],
		"properties": {
			"lyrics": {"type": "string", "minLength": 1},
			"audioBase64": {"type": "string", "minLength": 1},
			"durationSeconds": {"type": "number", "minimum": 0},
			"language": {"type": "string"},
			"accentGoal": {"type": "string"}
		}
	}`)

	consonantScoreSchema = compileSchema(`{
		"type": "object",
		"required": ["audioBase64", "bpm"],
		"properties": {
			"audioBase64": {"type": "string", "minLength": 1},
			"bpm": {"type": "number", "minimum": 40, "maximum": 300},
			"grid": {"type": "string", "enum": ["beat", "8th", "16th"]},
			"toleranceMs": {"type": "number", "minimum": 5, "maximum": 60},
			"maxEvents": {"type": "integer", "minimum": 20, "maximum": 300}
		}
	}`)

	collabUpsertSchema = compileSchema(`{
		"type": "object",
		"required": ["externalTrackId", "title"],
		"properties": {
			"externalTrackId": {"type": "string", "minLength": 1},
			"projectId": {"type": "string"},
			"title": {"type": "string", "minLength": 1},
			"artist": {"type": "string"},
			"bpm": {"type": "number", "minimum": 0},
			"lyrics": {"type": "string"},
			"collaborators": {"type": "array", "items": {"type": "string"}},
			"source": {"type": "string"},
			"updatedAt": {"type": "string"}
		}
	}`)

	learningSessionSchema = compileSchema(`{
		"type": "object",
		"required": ["sessionId", "lyrics"],
		"properties": {
			"userId": {"type": "string"},
			"sessionId": {"type": "string", "minLength": 1},
			"songId": {"type": "string"},
			"genre": {"type": "string"},
			"title": {"type": "string"},
			"durationSeconds": {"type": "number", "minimum": 0},
			"textAccuracy": {"type": "number", "minimum": 0, "maximum": 100},
			"pronunciationClarity": {"type": "number", "minimum": 0, "maximum": 100},
			"timingConsistency": {"type": "string", "enum": ["low", "medium", "high"]},
			"lyrics": {"type": "string", "minLength": 1},
			"transcript": {"type": "string"},
			"language": {"type": "string"},
			"accentGoal": {"type": "string"},
			"topToFix": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["word", "reason"],
					"properties": {
						"word": {"type": "string", "minLength": 1},
						"reason": {"type": "string", "minLength": 1}
					}
				}
			}
		}
	}`)

	learningEasePocketSchema = compileSchema(`{
		"type": "object",
		"required": ["eventId", "mode", "bpm", "stats"],
		"properties": {
			"userId": {"type": "string"},
			"eventId": {"type": "string", "minLength": 1},
			"mode": {"type": "string", "enum": ["subdivision", "silent", "consonant", "pocket", "slow"]},
			"bpm": {"type": "number", "minimum": 40, "maximum": 300},
			"grid": {"type": "string", "enum": ["beat", "8th", "16th"]},
			"beatsPerBar": {"type": "integer", "enum": [2, 4]},
			"stats": {
				"type": "object",
				"properties": {
					"eventCount": {"type": "integer", "minimum": 0},
					"onTimePct": {"type": "number", "minimum": 0, "maximum": 100},
					"meanAbsMs": {"type": "number", "minimum": 0},
					"stdDevMs": {"type": "number", "minimum": 0},
					"avgOffsetMs": {"type": "number"}
				}
			}
		}
	}`)
)
