package core

// Analysis is the structured result of a discussion analysis run.
type Analysis struct {
	MainPoints         []MainPoint `json:"mainPoints"`
	ParticipantStances []Stance    `json:"participantStances"`
	Conflicts          []Conflict  `json:"conflicts"`
	CommonGround       []string    `json:"commonGround"`
	UnexploredAreas    []string    `json:"unexploredAreas"`
}

// MainPoint is a central issue of the discussion.
type MainPoint struct {
	Point       string `json:"point"`
	Description string `json:"description,omitempty"`
}

// Stance captures one participant's current position.
type Stance struct {
	Participant  string   `json:"participant"`
	Stance       string   `json:"stance"`
	KeyArguments []string `json:"keyArguments,omitempty"`
}

// Conflict is a point on which participants disagree.
type Conflict struct {
	Issue       string   `json:"issue"`
	Sides       []string `json:"sides,omitempty"`
	Description string   `json:"description,omitempty"`
}

// IsEmpty reports whether no field carried any accepted entry.
func (a *Analysis) IsEmpty() bool {
	return a == nil || (len(a.MainPoints) == 0 &&
		len(a.ParticipantStances) == 0 &&
		len(a.Conflicts) == 0 &&
		len(a.CommonGround) == 0 &&
		len(a.UnexploredAreas) == 0)
}
