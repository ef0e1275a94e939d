package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

// UI texts in English
const (
	welcomeBackText = "👋 Welcome back! You are already registered.\n" +
		"Use /help to see available commands."
	alreadyRegisteredText = "👋 You are already registered!\n" +
		"Use /help to see available commands."
	askPhoneText         = "👋 Welcome! Please share your phone number to register."
	invalidPhoneText     = "❌ Invalid phone number. Please share your contact or enter a valid phone number."
	askFirstNameText     = "📝 Please enter your first name:"
	invalidFirstNameText = "❌ Name must be between 1 and 100 characters."
	askLastNameText      = "📝 Please enter your last name:"
	invalidLastNameText  = "❌ Last name must be between 1 and 100 characters."
	registeredFmt        = "✅ Registration complete!\n\n" +
		"Phone: %s\n" +
		"Name: %s\n\n" +
		"I'll now check for any upcoming events..."

	helpText = "🤖 Available Commands:\n\n" +
		"/start - Start the bot and register\n" +
		"/help - Show this help message\n" +
		"/cancel - Cancel the current operation\n"
	adminHelpText = "\n👑 Admin Commands:\n" +
		"/create_event - Create a new event\n" +
		"/list_events - List all upcoming events\n"

	cancelledText       = "Operation cancelled."
	nothingToCancelText = "Nothing to cancel."
	unknownCommandText  = "Unknown command. Use /help to see available commands."
	noSessionText       = "Use /start to register or /help to see available commands."

	adminOnlyText    = "⛔️ This command is only available to administrators."
	genericErrorText = "❌ An error occurred. Please try again later."

	askTitleText       = "Please enter the event title:"
	invalidTitleText   = "❌ Title must be between 1 and 200 characters."
	askDescriptionText = "Please enter the event description:"
	askPhotoText       = "Please send a photo for the event:"
	askDateText        = "Please select or enter the event date in format: DD Month (Day)\n" +
		"For example: 25 December (Monday)\n\n" +
		"You can select from the quick options below or type your own:"
	invalidDateText = "Invalid date format. Please use format: DD Month\n" +
		"For example: 25 December"
	askTimeText = "Please select or enter the event time in 24-hour format (HH:MM)\n" +
		"For example: 14:30 for 2:30 PM\n\n" +
		"You can select from common times below or type your own:"
	invalidTimeText = "Invalid time format. Please use 24-hour format (HH:MM)\n" +
		"For example: 14:30 for 2:30 PM"
	pastTimeText = "You cannot create an event for a time that has already passed today. " +
		"Please select a future time:"
	pastDateText    = "You cannot create an event in the past. Please select a future date:"
	eventCreatedFmt = "✅ Event created successfully!\n\n" +
		"📌 Title: %s\n" +
		"📅 Date: %s\n" +
		"⏰ Time: %s\n" +
		"📝 Description: %s"

	listErrorText   = "❌ An error occurred while fetching events. Please try again later."
	noUpcomingText  = "📅 No upcoming events found."
	upcomingTitle   = "📋 Upcoming Events:\n\n"
	upcomingItemFmt = "%d. 📌 %s\n" +
		"   📅 %s\n" +
		"   ⏰ %s\n" +
		"   ⏳ Time until: %s\n" +
		"   📝 %s\n\n"
)

// dateOptions is how many days the date keyboard offers.
const dateOptions = 7

func phoneKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("📱 Share Phone Number"),
		),
	)
	kb.OneTimeKeyboard = true
	return kb
}

// dateKeyboard offers today and the following days, one per row.
func (r *Router) dateKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for _, label := range domain.DateOptions(r.now(), r.loc, dateOptions) {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

// timeKeyboard offers common start times in rows of four.
func timeKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var (
		rows [][]tgbotapi.KeyboardButton
		row  []tgbotapi.KeyboardButton
	)
	for _, t := range domain.ClockOptions() {
		row = append(row, tgbotapi.NewKeyboardButton(t))
		if len(row) == 4 {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func removeKeyboard() tgbotapi.ReplyKeyboardRemove {
	return tgbotapi.NewRemoveKeyboard(true)
}
