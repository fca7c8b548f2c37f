package ramal_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/ramal"
	"github.com/aretw0/ramal/pkg/adapters/memory"
	"github.com/aretw0/ramal/pkg/dsl"
	"github.com/aretw0/ramal/pkg/runner"
)

// ExampleNew runs a consent flow in memory, printing effects to stdout
// the way a WhatsApp channel would deliver them.
func ExampleNew() {
	b := dsl.New("consentimiento")
	b.Message("welcome", "Hola {{ debtor.name | cliente }}, ¿aceptas la política de datos?").
		Buttons("Sí", "No").
		ReplyTo("check")
	b.Condition("check").
		When("user_response", "contains_ignore_case", "si", "accepted").
		Default("rejected")
	b.Message("accepted", "Gracias.")
	b.Message("rejected", "Entendido, sin tu autorización no podemos continuar.")

	console := runner.NewConsole(os.Stdout)
	bot, err := ramal.New(memory.NewGraphStoreFromGraphs(b.MustGraph()),
		ramal.WithChannel(console),
		ramal.WithLifecycle(console),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if _, err := bot.Start(ctx, "573001112233@c.us", "consentimiento", ""); err != nil {
		log.Fatal(err)
	}
	res, err := bot.HandleMessage(ctx, "573001112233@c.us", "No")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Session.Status)

	// Output:
	// Hola cliente, ¿aceptas la política de datos?
	//   1) Sí
	//   2) No
	// Entendido, sin tu autorización no podemos continuar.
	// completed
}

// ExampleBot_Idle lists chats that stopped answering.
func ExampleBot_Idle() {
	b := dsl.New("saldo")
	b.Menu("start", "¿Qué deseas hacer?").Option("", "Consultar saldo", "balance")
	b.Message("balance", "Tu saldo es 0.")

	bot, err := ramal.New(memory.NewGraphStoreFromGraphs(b.MustGraph()))
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	if _, err := bot.Start(ctx, "c1", "saldo", ""); err != nil {
		log.Fatal(err)
	}

	chats, err := bot.Idle(ctx, 0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(chats)

	// Output:
	// [c1]
}
