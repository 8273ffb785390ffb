package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"campusnotify/internal/config"
	"campusnotify/internal/di"
	"campusnotify/internal/notify"
	"campusnotify/internal/session"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	if cfg.API.Token == "" {
		log.Fatal("NOTIFY_TOKEN is required (run notifyd and copy the printed dev token)")
	}

	sess, err := di.InitializeSession(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session: %v", err)
	}
	defer sess.Close()

	sess.Subscribe(session.ObserverFunc("console", func(st session.State) {
		if st.Loading {
			return
		}
		if st.Err != "" {
			log.Printf("session error: %s", st.Err)
			return
		}
		fmt.Printf("--- %d unread of %d ---\n", st.UnreadCount, len(st.Notifications))
		for _, n := range st.Notifications {
			marker := " "
			if !n.Read {
				marker = "*"
			}
			fmt.Printf("%s %s %-22s %s (%s)\n",
				marker, notify.IconFor(n.Type), n.Title, notify.RelativeTime(n.CreatedAt),
				notify.ColorClassFor(n.Priority))
		}
	}))

	sess.Open()
	log.Println("Session open; waiting for notifications (Ctrl-C to quit)")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Closing session")
}
