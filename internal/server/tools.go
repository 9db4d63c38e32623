package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func slideIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Slide identifier: the file stem shared by slides/<id>.* and cosmx/<id>.png",
	}
}

func modeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"auto", "full", "partial"},
		"description": "Coverage mode override. auto classifies from tissue and image area ratios (default: auto)",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "cosmx_list_slides",
			Description: "List the slides in the data directory, one per CosMx PNG, with whether an H&E image and a transform record exist for each.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "cosmx_align_slide",
			Description: "Find the rotation, flips, scale and translation that place a slide's CosMx image onto its H&E image, and write output/<id>/transform.json. Returns the record, the combined score and whether the result needs manual review.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slide_id": slideIDProperty(),
					"mode":     modeProperty(),
					"refine": map[string]interface{}{
						"type":        "boolean",
						"description": "Run a local translation search around the best candidate (default: false)",
					},
					"debug": map[string]interface{}{
						"type":        "boolean",
						"description": "Also write the alignment overlay PNG next to the record (default: false)",
					},
				},
				"required": []string{"slide_id"},
			},
		},
		{
			Name:        "cosmx_classify_coverage",
			Description: "Classify whether a slide's CosMx image covers the full H&E tissue or only a crop of it, without searching for a transform.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slide_id": slideIDProperty(),
					"mode":     modeProperty(),
				},
				"required": []string{"slide_id"},
			},
		},
		{
			Name:        "cosmx_get_transform",
			Description: "Read a slide's transform record. When none has been written, returns the identity transform with found=false.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slide_id": slideIDProperty(),
				},
				"required": []string{"slide_id"},
			},
		},
	}
}
