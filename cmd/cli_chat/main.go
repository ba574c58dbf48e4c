package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chat-presence/internal/config"
	"chat-presence/internal/db"
	"chat-presence/internal/domain"
	"chat-presence/internal/repository"
	"chat-presence/internal/service"
)

// cli_chat es un cliente de desarrollo: firma un token local y habla con /ws.
func main() {
	userID := flag.Int64("user", 0, "id del usuario que se conecta")
	server := flag.String("server", "", "host:puerto del api (por defecto localhost:HTTP_PORT)")
	flag.Parse()

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	conversationRepo := repository.NewPgConversationRepository(pool)
	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)

	if *userID == 0 {
		*userID = promptInt(reader, "Id de usuario: ")
	}
	user, err := userRepo.GetByID(ctx, *userID)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Fatalf("usuario %d no existe", *userID)
	}
	if err != nil {
		log.Fatal(err)
	}

	token, err := jwtSvc.IssueAccessToken(user)
	if err != nil {
		log.Fatalf("firmar token: %v", err)
	}

	addr := *server
	if addr == "" {
		addr = "localhost:" + cfg.HTTPPort
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws?token="+token, nil)
	if err != nil {
		log.Fatalf("conectar: %v", err)
	}
	defer conn.Close()

	go printEvents(conn, user.ID)

	for {
		convs, err := conversationRepo.ListByParticipant(ctx, user.ID)
		if err != nil {
			log.Fatalf("listar conversaciones: %v", err)
		}
		if len(convs) == 0 {
			fmt.Println("No hay conversaciones activas para este usuario.")
			return
		}

		fmt.Println("===== Conversaciones =====")
		for i, c := range convs {
			fmt.Printf("[%d] #%d con usuario %d (sin leer: %d) %s\n", i+1, c.ID, c.OtherParticipant(user.ID), c.UnreadFor(user.ID), c.LastMessage)
		}
		fmt.Println("[S] Salir")
		fmt.Print("Selecciona una conversacion: ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)
		if strings.EqualFold(choice, "S") {
			return
		}
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > len(convs) {
			fmt.Println("Seleccion invalida.")
			continue
		}

		if err := chatFlow(conn, reader, convs[idx-1]); err != nil {
			log.Printf("error en chat: %v", err)
			return
		}
	}
}

func chatFlow(conn *websocket.Conn, reader *bufio.Reader, conv domain.Conversation) error {
	ref := map[string]any{"conversation_id": conv.ID}
	if err := writeFrame(conn, domain.EventJoinConversation, ref); err != nil {
		return err
	}
	if err := writeFrame(conn, domain.EventMarkAsRead, ref); err != nil {
		return err
	}

	fmt.Println("---- Modo Chat (/salir, /estado <id>, /escribiendo) ----")
	for {
		text, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("leer input: %w", err)
		}
		text = strings.TrimSpace(text)

		switch {
		case text == "":
			continue
		case text == "/salir":
			return writeFrame(conn, domain.EventLeaveConversation, ref)
		case text == "/escribiendo":
			err = writeFrame(conn, domain.EventTyping, ref)
		case strings.HasPrefix(text, "/estado "):
			id, convErr := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(text, "/estado ")), 10, 64)
			if convErr != nil {
				fmt.Println("Id invalido.")
				continue
			}
			err = writeFrame(conn, domain.EventCheckUserStatus, map[string]any{"user_id": id})
		default:
			err = writeFrame(conn, domain.EventSendMessage, map[string]any{"conversation_id": conv.ID, "body": text})
			if err == nil {
				err = writeFrame(conn, domain.EventMarkAsRead, ref)
			}
		}
		if err != nil {
			return err
		}
	}
}

func writeFrame(conn *websocket.Conn, eventType string, data any) error {
	return conn.WriteJSON(map[string]any{"type": eventType, "data": data})
}

// printEvents muestra lo que empuja el servidor hasta que se cierra el socket.
func printEvents(conn *websocket.Conn, self int64) {
	for {
		var evt struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&evt); err != nil {
			fmt.Printf("\n[conexion cerrada: %v]\n", err)
			os.Exit(0)
		}

		switch evt.Type {
		case domain.EventNewMessage:
			var p domain.NewMessagePayload
			if json.Unmarshal(evt.Data, &p) == nil && p.Message.SenderID != self {
				fmt.Printf("%s > %s\n", p.Sender.DisplayName, p.Message.Body)
			}
		case domain.EventMessageSent:
			// eco propio
		case domain.EventUserTyping:
			var p domain.TypingPayload
			if json.Unmarshal(evt.Data, &p) == nil && p.IsTyping {
				fmt.Printf("[usuario %d esta escribiendo]\n", p.UserID)
			}
		case domain.EventError:
			var p domain.ErrorPayload
			_ = json.Unmarshal(evt.Data, &p)
			fmt.Printf("[error %s: %s]\n", p.Code, p.Error)
		default:
			fmt.Printf("[%s] %s\n", evt.Type, string(evt.Data))
		}
	}
}

func promptInt(reader *bufio.Reader, label string) int64 {
	for {
		fmt.Print(label)
		line, _ := reader.ReadString('\n')
		id, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
		if err == nil && id > 0 {
			return id
		}
		fmt.Println("Valor invalido.")
	}
}
