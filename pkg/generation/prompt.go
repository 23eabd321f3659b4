package generation

import (
	"fmt"
	"strings"

	"musegen_backend/internal/model"
)

// buildAppearance renders the profile's descriptive attributes into a
// prompt fragment. The attributes are inert data from the rest of the
// system's perspective; only this package interprets them.
func buildAppearance(profile model.CharacterProfile) string {
	ethnicity := profile.Ethnicity
	if ethnicity == "Custom" && profile.CustomEthnicity != "" {
		ethnicity = profile.CustomEthnicity
	}

	parts := []string{
		fmt.Sprintf("a %d year old %s %s", profile.Age, ethnicity, strings.ToLower(string(profile.Gender))),
		fmt.Sprintf("%s skin tone", profile.SkinTone),
		fmt.Sprintf("%s eyes", profile.EyeColor),
		fmt.Sprintf("%s %s hair", profile.HairColor, strings.ToLower(profile.HairStyle)),
		fmt.Sprintf("%s body type", strings.ToLower(profile.BodyType)),
	}
	return strings.Join(parts, ", ")
}

func buildImagePrompt(profile model.CharacterProfile, params ImageParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Photorealistic portrait of %s, %s.", profile.Name, buildAppearance(profile))

	if params.Outfit != "" {
		fmt.Fprintf(&b, " Wearing %s.", params.Outfit)
	}
	if params.Makeup != "" {
		fmt.Fprintf(&b, " Makeup: %s.", params.Makeup)
	}
	if params.Pose != "" {
		fmt.Fprintf(&b, " Pose: %s.", params.Pose)
	}
	if params.Background != "" {
		fmt.Fprintf(&b, " Background: %s.", params.Background)
	}
	if params.CameraAngle != "" {
		fmt.Fprintf(&b, " Camera angle: %s.", params.CameraAngle)
	}

	b.WriteString(" High quality, detailed, professional photography.")
	return b.String()
}

func buildPersonaPrompt(profile model.CharacterProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.", profile.Name, buildAppearance(profile))
	fmt.Fprintf(&b, " Personality: %s.", profile.Personality)
	if profile.Occupation != "" {
		fmt.Fprintf(&b, " Occupation: %s.", profile.Occupation)
	}
	if profile.Relationship != "" {
		fmt.Fprintf(&b, " Relationship to the user: %s.", profile.Relationship)
	}
	if profile.Hobby != "" {
		fmt.Fprintf(&b, " Hobby: %s.", profile.Hobby)
	}
	if profile.Storyline != "" {
		fmt.Fprintf(&b, " Backstory: %s", profile.Storyline)
	}
	b.WriteString(` Stay in character at all times. Respond with JSON of the shape
{"response": string, "imagePrompt": string optional (only when the user asks to see something visual), "suggestions": up to 3 short reply suggestions for the user}.`)
	return b.String()
}

func buildStorylinePrompt(profile model.CharacterProfile) string {
	return fmt.Sprintf(
		"Write a short, engaging backstory (3-4 sentences) for %s, %s. Personality: %s. Occupation: %s. Respond with the backstory only.",
		profile.Name, buildAppearance(profile), profile.Personality, profile.Occupation,
	)
}
