package entity

type Question struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// Questionnaire is the category question followed by one question set per category.
type Questionnaire struct {
	Initial Question                `json:"initial"`
	Sets    map[Category][]Question `json:"sets"`
}

// DefaultQuestionnaire returns the questions shown before a recommendation request.
func DefaultQuestionnaire() Questionnaire {
	return Questionnaire{
		Initial: Question{
			ID:      1,
			Text:    "First, what are you in the mood for?",
			Options: []string{string(CategoryGame), string(CategoryAnime), string(CategoryMovie), string(CategoryTVSeries)},
		},
		Sets: map[Category][]Question{
			CategoryGame: {
				{ID: 2, Text: "Which genre are you looking for in a game?", Options: []string{"RPG", "Action-Adventure", "Strategy", "Shooter", "Indie", "Puzzle"}},
				{ID: 3, Text: "What kind of gameplay experience do you prefer?", Options: []string{"A deep, story-driven campaign", "Fast-paced, competitive multiplayer", "Relaxing and creative sandbox", "Challenging strategic thinking"}},
				{ID: 4, Text: "Which art style appeals to you most?", Options: []string{"Hyper-Realistic", "Stylized Cel-Shading", "Pixel Art", "Minimalist"}},
				{ID: 5, Text: "What is your preferred player format?", Options: []string{"Single-Player", "Co-op with friends", "Massively Multiplayer (MMO)", "Doesn't matter"}},
			},
			CategoryAnime: {
				{ID: 2, Text: "Which anime genre are you interested in?", Options: []string{"Shonen (Action/Adventure)", "Slice of Life", "Isekai (Another World)", "Psychological Thriller", "Romance", "Mecha"}},
				{ID: 3, Text: "What kind of story length do you prefer?", Options: []string{"A short series (12-24 episodes)", "A long-running epic (100+ episodes)", "A standalone movie", "Doesn't matter"}},
				{ID: 4, Text: "What visual style do you enjoy?", Options: []string{"Classic 90s aesthetic", "Modern & crisp animation", "Unique & experimental art", "Visually stunning (e.g., Ufotable/Makoto Shinkai)"}},
				{ID: 5, Text: "What's the primary mood you're seeking?", Options: []string{"Lighthearted and funny", "Dark and thought-provoking", "Epic and inspiring", "Heartwarming and emotional"}},
			},
			CategoryMovie: {
				{ID: 2, Text: "Which movie genre are you in the mood for?", Options: []string{"Sci-Fi", "Fantasy", "Thriller", "Comedy", "Drama", "Action"}},
				{ID: 3, Text: "What kind of film are you looking for?", Options: []string{"A blockbuster with amazing effects", "An indie film with a strong story", "A critically-acclaimed classic", "A lighthearted popcorn flick"}},
				{ID: 4, Text: "What's more important to you?", Options: []string{"A complex, mind-bending plot", "Strong character development", "Breathtaking cinematography", "Non-stop action"}},
				{ID: 5, Text: "Pick a decade for the film's release:", Options: []string{"2020s", "2010s", "2000s", "90s or earlier"}},
			},
			CategoryTVSeries: {
				{ID: 2, Text: "Which TV series genre are you in the mood for?", Options: []string{"Comedy", "Drama", "Sci-Fi/Fantasy", "Thriller/Mystery", "Documentary", "Reality TV"}},
				{ID: 3, Text: "What kind of show are you looking for?", Options: []string{"A lighthearted 30-min sitcom", "A serious, hour-long drama", "A complex, thought-provoking story", "An easy-to-watch reality show"}},
				{ID: 4, Text: "How do you prefer to watch?", Options: []string{"Something I can binge in a weekend", "An episodic show I can watch weekly", "A long-running series to get invested in", "Doesn't matter"}},
				{ID: 5, Text: "What style of show appeals to you?", Options: []string{"Classic network television", "Modern streaming original", "British production", "Animated series for adults"}},
			},
		},
	}
}
