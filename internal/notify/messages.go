package notify

import (
	"fmt"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/domain/task"
	"dealbroker/internal/domain/user"
)

// OfferMessage invites a fulfiller to take the task.
func OfferMessage(t task.Task, owner user.User) Message {
	text := fmt.Sprintf(
		"Новый оффер: %s\nОписание: %s\nЦена: %s\nНужно исполнителей: %d\nЗаказчик: %s",
		t.Title, t.Description, t.Price.StringFixed(2), t.SlotsNeeded, owner.Handle(),
	)
	return Message{
		Text:    text,
		Buttons: [][]Button{{{Text: "Готов взяться", Data: OfferCallbackData(t.ID)}}},
	}
}

// ContactsMessage hands the fulfiller's contact to the requester.
func ContactsMessage(t task.Task, fulfiller user.User) Message {
	return Message{
		Text: fmt.Sprintf("Исполнитель %s откликнулся на задачу «%s». Свяжитесь с ним напрямую.", fulfiller.Handle(), t.Title),
	}
}

// FeedbackPrompt asks one side how the deal went.
func FeedbackPrompt(i interaction.Interaction, side interaction.Side, counterpart user.User) Message {
	who := "исполнителем"
	if side == interaction.SideFulfiller {
		who = "заказчиком"
	}
	text := fmt.Sprintf("Вы связывались с %s %s по задаче #%s?", who, counterpart.Handle(), i.TaskID)

	order := []interaction.Outcome{
		interaction.OutcomeOK,
		interaction.OutcomeNoDeal,
		interaction.OutcomePostpone,
		interaction.OutcomeIssue,
	}
	rows := make([][]Button, 0, len(order))
	for _, o := range order {
		rows = append(rows, []Button{{Text: interaction.ButtonText[o], Data: FeedbackCallbackData(side, i.ID, o)}})
	}
	return Message{Text: text, Buttons: rows}
}
