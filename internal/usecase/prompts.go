package usecase

import (
	"fmt"
	"strings"

	"zappy-core/internal/domain/entity"
)

const recommendationPromptTemplate = `You are Zappy, an expert recommender for %[1]ss. A user has provided the following preferences: %[2]s. Based on the user's preferences, and using the provided list as a guide for recent and popular titles, provide exactly three %[1]s recommendations. You can use your own knowledge in addition to the list. Crucially, do not recommend any titles that have a release date in the future. Only recommend titles that are already released. Format the output as a valid JSON array of objects. Each object must have "title", "category", and "explanation" keys. Do not include any other text or explanations outside of the JSON array.`

// BuildRecommendationPrompt renders the generation prompt. An empty context block is omitted.
func BuildRecommendationPrompt(category entity.Category, preferences, categoryContext string) string {
	var b strings.Builder
	if categoryContext != "" {
		b.WriteString("To ensure your recommendations are current, use this list of recent and popular titles as a primary guide:\n")
		b.WriteString(categoryContext)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, recommendationPromptTemplate, category, preferences)
	return b.String()
}

var categoryPersonas = map[entity.Category]string{
	entity.CategoryGame:     "You are discussing games. Be knowledgeable about gaming trends, platforms, and genres.",
	entity.CategoryMovie:    "You are discussing movies. Be knowledgeable about cinema, directors, actors, and film genres.",
	entity.CategoryAnime:    "You are discussing anime. Be knowledgeable about anime series, manga adaptations, and Japanese animation.",
	entity.CategoryTVSeries: "You are discussing TV series. Be knowledgeable about television shows, streaming platforms, and series.",
}

const chatInstructions = `Your instructions are as follows:
1.  **Prioritize Information**: Your primary goal is to use the real-time information provided above. If [SPECIFIC INFORMATION] is available, it is the most important and should be treated as the source of truth for your answer. If it is empty, use the [GENERAL CONTEXT] as a reference for recent titles. Only if both are empty should you rely solely on your own internal knowledge.
2.  **Be Honest**: If you cannot find the requested information in the provided context or your own knowledge, clearly state that you don't have details about it. Do not invent or hallucinate information.
3.  **Stay on Topic**: Only answer questions related to entertainment (games, movies, anime, TV). Politely decline any other topics.
4.  **Be Concise**: Keep your answers helpful and to the point.`

// BuildChatSystemPrompt ranks specific context above general context above model knowledge.
func BuildChatSystemPrompt(category entity.Category, generalContext, specificContext string, prior []entity.Recommendation) string {
	var b strings.Builder
	b.WriteString("You are Zappy, a helpful and knowledgeable entertainment recommender.\n")
	if persona, ok := categoryPersonas[category]; ok {
		b.WriteString(persona)
		b.WriteString("\n")
	}
	if generalContext != "" {
		b.WriteString("[GENERAL CONTEXT - A list of recent and popular titles for your reference]:\n")
		b.WriteString(generalContext)
		b.WriteString("\n\n")
	}
	if specificContext != "" {
		b.WriteString("[SPECIFIC INFORMATION - This is highly relevant to the user's last message]:\n")
		b.WriteString(specificContext)
		b.WriteString("\n\n")
	}
	b.WriteString("\n")
	b.WriteString(chatInstructions)

	if len(prior) > 0 {
		titles := make([]string, 0, len(prior))
		for _, r := range prior {
			titles = append(titles, r.Title)
		}
		fmt.Fprintf(&b, "\nThe user was previously recommended: %s.", strings.Join(titles, ", "))
	}
	return b.String()
}
