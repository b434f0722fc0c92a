package listener

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type fakeProducer struct {
	sent    []*ck.Message
	failErr error
	noReply bool
}

func (f *fakeProducer) Produce(msg *ck.Message, ch chan ck.Event) error {
	f.sent = append(f.sent, msg)
	if f.noReply {
		return nil
	}
	reply := *msg
	reply.TopicPartition.Error = f.failErr
	ch <- &reply
	return nil
}

func (f *fakeProducer) Close() {}

func TestPublisher_Send(t *testing.T) {
	fp := &fakeProducer{}
	pb := &Publisher{p: fp, topic: "shoplist.commands", timeout: time.Second}
	if err := pb.Send(Command{Type: TypeAddRecipe, RecipeID: 4}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(fp.sent) != 1 || *fp.sent[0].TopicPartition.Topic != "shoplist.commands" {
		t.Fatalf("sent: %+v", fp.sent)
	}
	var got Command
	if err := json.Unmarshal(fp.sent[0].Value, &got); err != nil || got.RecipeID != 4 || got.Type != TypeAddRecipe {
		t.Fatalf("payload: %s %v", fp.sent[0].Value, err)
	}
}

func TestPublisher_DeliveryFailure(t *testing.T) {
	pb := &Publisher{p: &fakeProducer{failErr: errors.New("broker gone")}, topic: "t", timeout: time.Second}
	if err := pb.Send(Command{Type: TypeClearChecked}); err == nil {
		t.Fatalf("expected delivery error")
	}
	pb = &Publisher{p: &fakeProducer{noReply: true}, topic: "t", timeout: 10 * time.Millisecond}
	if err := pb.Send(Command{Type: TypeClearChecked}); err == nil {
		t.Fatalf("expected timeout")
	}
}
