package domain

// ShowRecord is what a participant leaves behind after a turn on the show.
// It feeds the souvenir card metadata.
type ShowRecord struct {
	DisplayName  string   `json:"name"`
	ADN          string   `json:"adn"`
	IntroText    string   `json:"introWords"`
	LastWords    string   `json:"lastWords"`
	DeathCause   string   `json:"causeOfDeath"`
	Score        int      `json:"score"`
	Achievements []string `json:"achievements"`
}

func (r ShowRecord) clone() ShowRecord {
	out := r
	out.Achievements = append([]string(nil), r.Achievements...)
	return out
}
