package actions

import (
	"testing"

	"github.com/yungbote/restoration-assistant/internal/assistant/intent"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

func types(as []chat.Action) []chat.ActionType {
	out := make([]chat.ActionType, 0, len(as))
	for _, a := range as {
		out = append(out, a.Type)
	}
	return out
}

func TestGenerateRules(t *testing.T) {
	cases := []struct {
		name    string
		intent  string
		level   chat.UrgencyTier
		service chat.ServiceType
		want    []chat.ActionType
	}{
		{"critical flood", intent.EmergencyHelp, chat.UrgencyCritical, chat.ServiceWaterDamage, []chat.ActionType{chat.ActionCall, chat.ActionUpload}},
		{"request service", intent.RequestService, chat.UrgencyLow, chat.ServiceGeneral, []chat.ActionType{chat.ActionCall}},
		{"fire quote", intent.GetQuote, chat.UrgencyMedium, chat.ServiceFireDamage, []chat.ActionType{chat.ActionQuote, chat.ActionUpload}},
		{"critical quote", intent.GetQuote, chat.UrgencyCritical, chat.ServiceMould, []chat.ActionType{chat.ActionCall, chat.ActionQuote, chat.ActionUpload}},
		{"booking", intent.BookAppointment, chat.UrgencyHigh, chat.ServiceStorm, []chat.ActionType{chat.ActionBook, chat.ActionUpload}},
		{"general", intent.GeneralInquiry, chat.UrgencyLow, chat.ServiceGeneral, []chat.ActionType{}},
	}
	for _, tc := range cases {
		got := types(Generate(tc.intent, chat.Urgency{Level: tc.level}, tc.service))
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
			}
		}
	}
}

func TestGenerateData(t *testing.T) {
	as := Generate(intent.BookAppointment, chat.Urgency{Level: chat.UrgencyCritical}, chat.ServiceBiohazard)
	if as[0].Type != chat.ActionCall || as[0].Data["phone"] != intent.EmergencyPhone {
		t.Fatalf("call action=%+v", as[0])
	}
	if as[1].Data["serviceType"] != "biohazard" || as[1].Data["urgency"] != "critical" {
		t.Fatalf("book data=%+v", as[1].Data)
	}
	if Generate("", chat.Urgency{}, "") == nil {
		t.Fatalf("expected non-nil empty slice")
	}
}
