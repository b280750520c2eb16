package telegram

import (
	"ll-buddy/api/internal/pipeline"
)

type ActionKind int

const (
	ActionSend ActionKind = iota + 1
	ActionDeny
	ActionProcessPhoto
)

// Action: что сделать в ответ на событие. Выполняет Router.
type Action struct {
	Kind     ActionKind
	ChatID   int64
	SenderID int64
	Text     string
	Photo    pipeline.PhotoEvent
}

// Dispatcher решает, что делать с событием, без какого-либо I/O.
type Dispatcher struct {
	Allowed map[int64]struct{}
}

func (d Dispatcher) Dispatch(ev Event) []Action {
	if _, ok := d.Allowed[ev.SenderID]; !ok {
		return []Action{{Kind: ActionDeny, ChatID: ev.ChatID, SenderID: ev.SenderID, Text: accessDeniedText}}
	}

	switch ev.Kind {
	case EventCommand:
		switch ev.Command {
		case "start", "help":
			return []Action{sendTo(ev, greetingText)}
		default:
			return []Action{sendTo(ev, unknownCommandText)}
		}
	case EventText:
		return []Action{sendTo(ev, "You said: "+ev.Text)}
	case EventPhoto:
		// пустой список размеров молча пропускаем
		if len(ev.Photos) == 0 {
			return nil
		}
		return []Action{{Kind: ActionProcessPhoto, ChatID: ev.ChatID, SenderID: ev.SenderID, Photo: ev.PhotoEvent()}}
	}
	return nil
}

func sendTo(ev Event, text string) Action {
	return Action{Kind: ActionSend, ChatID: ev.ChatID, SenderID: ev.SenderID, Text: text}
}
