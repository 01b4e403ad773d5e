package dialogue

import (
	"fmt"
	"strings"

	"github.com/wolfman30/autoparts-voice-agent/internal/nlu"
	"github.com/wolfman30/autoparts-voice-agent/internal/slots"
)

const (
	promptWelcome = "Hello! Welcome to Firstused Autoparts. May I know your name, please?"

	priceInfo    = "Our pricing depends on the exact part condition and availability. Our representative will contact you shortly with the correct price. Let's continue with your details."
	warrantyInfo = "We normally provide 3 to 12 months warranty depending on the part. Our representative will give you the exact warranty details. Let's continue."

	promptLeadSaved    = "Thank you! Your details have been saved. Our team will contact you soon with pricing and availability. Have a great day!"
	promptSaveFailed   = "I'm sorry, I couldn't save your details due to a technical problem. Our representative will still contact you. Thank you for calling."
	promptInvalidPhone = "I don't have a valid phone number for you yet. Please tell me your 10-digit mobile number."
	promptRestart      = "Sorry about that. Let's go through your details again. May I have your name, please?"
	promptTransferring = "Connecting you to our customer service team now. Please hold."
	promptGoodbye      = "Thank you for calling Firstused Autoparts. Goodbye."
)

// continuationPrompts re-ask the current step's question.
var continuationPrompts = map[Step]string{
	StepGreeting:      promptWelcome,
	StepName:          "May I have your name, please?",
	StepMobile:        "May I have your mobile number, please?",
	StepMobileConfirm: "Is that number correct? Please say Yes or No.",
	StepEmail:         "May I have your email address, please?",
	StepZip:           "May I know your ZIP code, please?",
	StepZipConfirm:    "Is that ZIP code correct? Please say Yes or No.",
	StepPart:          "What part are you looking for?",
	StepMake:          "Please tell me the vehicle make, for example, Honda or Toyota.",
	StepModel:         "What is the model name?",
	StepYear:          "What is the year of manufacture?",
	StepTrim:          "Do you know the trim or variant? If not, just say I don't know.",
	StepFinalConfirm:  "Are all the details I repeated correct? Please say Yes or No.",
	StepOfferTransfer: "Would you like me to connect you to our customer service? Please say Yes or No.",
	StepEnd:           promptGoodbye,
}

func continuation(step Step) string {
	if p, ok := continuationPrompts[step]; ok {
		return p
	}
	return continuationPrompts[StepName]
}

// capturedPrompts acknowledge a captured value and ask the next question.
// A %s is replaced by the captured value.
var capturedPrompts = map[Step]string{
	StepName:  "Thank you, %s. May I have your mobile number so our team can contact you?",
	StepEmail: "Got it, %s. If there's any spelling mistake, our team will correct it. Now, may I know your ZIP code?",
	StepPart:  "Thank you. Now, may I know the make of your vehicle? For example, Honda or Toyota.",
	StepMake:  "Great. What is the model name?",
	StepModel: "And the year of manufacture?",
	StepYear:  "Thanks. Finally, do you know the trim or variant? If not, just say I don't know.",
}

func captured(step Step, value string) string {
	p := capturedPrompts[step]
	if strings.Contains(p, "%s") {
		return fmt.Sprintf(p, value)
	}
	return p
}

var missedPrompts = map[Step]string{
	StepName:   "Sorry, I didn't catch your name. May I have your name, please?",
	StepMobile: "Sorry, I couldn't detect a phone number. Please say your 10-digit mobile number.",
	StepEmail:  "I couldn't detect a valid email. Could you please repeat your email address?",
	StepZip:    "I didn't catch your ZIP code. Could you please repeat it?",
	StepPart:   "I didn't catch that. Which part are you looking for?",
	StepMake:   "Could you repeat the vehicle make, please?",
	StepModel:  "Could you repeat the model name, please?",
	StepYear:   "I didn't get the year. Could you tell me the year of manufacture?",
}

func missed(step Step) string {
	if p, ok := missedPrompts[step]; ok {
		return p
	}
	return continuation(step)
}

var exhaustedPrompts = map[Step]string{
	StepMobile: "I'm having trouble capturing your number. Would you like me to connect you to our customer service?",
	StepEmail:  "I'm having trouble capturing your email. Would you like me to connect you to our customer service?",
	StepPart:   "I'm having trouble understanding the part. Would you like me to connect you to our customer service?",
	StepZip:    "No problem, our representative will confirm your ZIP code later. What part are you looking for?",
	StepYear:   "No problem, our representative will confirm the year. Do you know the trim or variant? If not, just say I don't know.",
}

var unclearPrompts = map[Step]string{
	StepMobileConfirm: "I didn't catch that clearly. Is your number correct? Please say Yes or No.",
	StepZipConfirm:    "I didn't catch that. Is the ZIP code correct? Please say Yes or No.",
	StepFinalConfirm:  "I didn't catch that clearly. Are all the details I repeated correct? Please say Yes or No.",
	StepOfferTransfer: "Sorry, would you like me to connect you to our customer service? Please say Yes or No.",
}

func interruption(intent nlu.Intent, step Step) string {
	info := priceInfo
	if intent == nlu.IntentAskWarranty {
		info = warrantyInfo
	}
	return info + " " + continuation(step)
}

func readBackPhone(phone string) string {
	return fmt.Sprintf("Just to confirm, your number is %s. Is that correct?", slots.FormatPhone(phone))
}

func readBackZip(zip string) string {
	return fmt.Sprintf("Your ZIP code is %s, correct?", zip)
}

func display(values slots.Values, key slots.Key) string {
	if v, ok := values.Get(key); ok {
		return v
	}
	return "not provided"
}

// summary reads every collected field back before the final confirmation.
func summary(values slots.Values) string {
	phone := display(values, slots.Phone)
	if slots.ValidPhone(phone) {
		phone = slots.FormatPhone(phone)
	}
	return fmt.Sprintf("Let me repeat your details. Name: %s. Mobile: %s. Email: %s. ZIP: %s. Part: %s. Vehicle: %s %s %s, trim %s. Is everything correct?",
		display(values, slots.Name),
		phone,
		display(values, slots.Email),
		display(values, slots.Zip),
		display(values, slots.PartRequested),
		display(values, slots.Make),
		display(values, slots.Model),
		display(values, slots.Year),
		display(values, slots.Trim),
	)
}
