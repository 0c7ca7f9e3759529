package domain

import (
	"fmt"
	"slices"
	"strings"
)

// StageLogicType selects which transition function applies when an item
// enters a stage.
type StageLogicType string

// StageLogicType values.
const (
	LogicPassthrough StageLogicType = "passthrough"
	LogicSplit       StageLogicType = "split"
	LogicMerge       StageLogicType = "merge"
	LogicExit        StageLogicType = "exit"
)

var validLogicTypes = []StageLogicType{LogicPassthrough, LogicSplit, LogicMerge, LogicExit}

// SalesChannel identifies where an exited batch was sold.
type SalesChannel string

// Enabled sales channels.
const (
	ChannelShopee    SalesChannel = "shopee"
	ChannelTokopedia SalesChannel = "tokopedia"
	ChannelWhatsApp  SalesChannel = "whatsapp"
	ChannelOffline   SalesChannel = "offline"
	ChannelB2B       SalesChannel = "b2b"
	ChannelKOLGift   SalesChannel = "kol_gift"
)

// SalesChannelLabels maps channel ids to display names for reports.
var SalesChannelLabels = map[SalesChannel]string{
	ChannelShopee:    "Shopee",
	ChannelTokopedia: "Tokopedia",
	ChannelWhatsApp:  "WhatsApp",
	ChannelOffline:   "Offline Store",
	ChannelB2B:       "B2B / Wholesale",
	ChannelKOLGift:   "KOL / Gift",
}

// WorkflowStage is one node in a production pipeline. Stage ids are stable
// reference keys: transitions target stages by id, never by order.
type WorkflowStage struct {
	ID                        string             `json:"id"`
	Name                      string             `json:"name"`
	Order                     int                `json:"order"`
	LogicType                 StageLogicType     `json:"logic_type"`
	AllowedMaterialCategories []MaterialCategory `json:"allowed_material_categories,omitempty"`
	DefaultYield              int                `json:"default_yield,omitempty"`
	MergeInputCount           int                `json:"merge_input_count,omitempty"`
	ExitChannels              []SalesChannel     `json:"exit_channels,omitempty"`
	Emoji                     string             `json:"emoji,omitempty"`
}

// WorkflowBlueprint is a named, ordered pipeline of stages describing one
// production flow.
type WorkflowBlueprint struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ProductType string          `json:"product_type,omitempty"`
	Description string          `json:"description,omitempty"`
	Stages      []WorkflowStage `json:"stages"`
}

// StageByID returns the stage with the given id.
func (b WorkflowBlueprint) StageByID(id string) (WorkflowStage, bool) {
	for _, s := range b.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return WorkflowStage{}, false
}

// ExitStage returns the first exit-logic stage, if any.
func (b WorkflowBlueprint) ExitStage() (WorkflowStage, bool) {
	for _, s := range b.Stages {
		if s.LogicType == LogicExit {
			return s, true
		}
	}
	return WorkflowStage{}, false
}

// PackingStage returns the designated pre-exit ready-stock stage. Detection
// follows the stage-name convention used by the inventory integration.
func (b WorkflowBlueprint) PackingStage() (WorkflowStage, bool) {
	for _, s := range b.Stages {
		if s.LogicType == LogicPassthrough && strings.Contains(strings.ToLower(s.Name), "pack") {
			return s, true
		}
	}
	return WorkflowStage{}, false
}

// Validate checks stage ids are unique and stage definitions are coherent.
func (b WorkflowBlueprint) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("blueprint id is required: %w", ErrInvalidID)
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("blueprint name is required: %w", ErrInvalidName)
	}
	if len(b.Stages) == 0 {
		return fmt.Errorf("blueprint %q has no stages: %w", b.ID, ErrInvalidStage)
	}
	seen := map[string]struct{}{}
	for i, s := range b.Stages {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("stages[%d].id is required: %w", i, ErrInvalidStage)
		}
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("stages[%d].name is required: %w", i, ErrInvalidStage)
		}
		if !slices.Contains(validLogicTypes, s.LogicType) {
			return fmt.Errorf("stages[%d].logic_type %q is unknown: %w", i, s.LogicType, ErrInvalidStage)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("stages[%d].id %q is duplicated: %w", i, s.ID, ErrInvalidStage)
		}
		seen[s.ID] = struct{}{}
		for j, c := range s.AllowedMaterialCategories {
			if !IsValidMaterialCategory(c) {
				return fmt.Errorf("stages[%d].allowed_material_categories[%d] %q is unknown: %w", i, j, c, ErrInvalidStage)
			}
		}
		switch s.LogicType {
		case LogicSplit:
			if s.DefaultYield < 0 {
				return fmt.Errorf("stages[%d].default_yield must be >= 0: %w", i, ErrInvalidStage)
			}
		case LogicExit:
			if len(s.ExitChannels) == 0 {
				return fmt.Errorf("stages[%d] exit stage needs at least one channel: %w", i, ErrInvalidStage)
			}
		}
	}
	return nil
}
