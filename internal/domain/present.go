package domain

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/mmcloughlin/geohash"
)

// markerGeohashPrecision gives ~150m cells, enough to cluster markers that
// share a street block.
const markerGeohashPrecision = 7

// ContactAction is a messaging link offered on a card.
type ContactAction struct {
	Role    string `json:"role"` // coordinator, leader, supervisor
	Label   string `json:"label"`
	URL     string `json:"url,omitempty"`
	Enabled bool   `json:"enabled"`
}

// Directions are deep links that route the visitor to the group.
type Directions struct {
	GoogleMaps string `json:"google_maps"`
	Waze       string `json:"waze"`
	Uber       string `json:"uber"`
}

// Card is the list/popup content for one group.
type Card struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	CategoryID          string          `json:"category_id"`
	CategoryLabel       string          `json:"category_label"`
	Color               string          `json:"color"`
	Location            string          `json:"location"`
	ApproximateLocation bool            `json:"approximate_location"`
	Schedule            string          `json:"schedule"`
	LeaderDisplay       string          `json:"leader_display,omitempty"`
	Distance            *float64        `json:"distance_km,omitempty"`
	DistanceLabel       string          `json:"distance_label,omitempty"`
	Contacts            []ContactAction `json:"contacts"`
	Directions          Directions      `json:"directions"`
}

// Marker is what the map layer needs to place a group.
type Marker struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Title   string  `json:"title"`
	Color   string  `json:"color"`
	Geohash string  `json:"geohash"`
}

// Presentation holds the cards and markers built from one pipeline output.
// Cards[i] and Markers[i] always describe the same group.
type Presentation struct {
	Cards   []Card   `json:"cards"`
	Markers []Marker `json:"markers"`
}

// Present builds cards and markers from the ordered pipeline output.
func Present(groups []Group, mode Mode, position *Position) Presentation {
	p := Presentation{
		Cards:   make([]Card, 0, len(groups)),
		Markers: make([]Marker, 0, len(groups)),
	}
	for _, g := range groups {
		p.Cards = append(p.Cards, card(g, mode, position))
		p.Markers = append(p.Markers, Marker{
			ID:      g.ID,
			Lat:     g.Position.Lat,
			Lon:     g.Position.Lon,
			Title:   g.Title,
			Color:   g.Category.Color,
			Geohash: geohash.EncodeWithPrecision(g.Position.Lat, g.Position.Lon, markerGeohashPrecision),
		})
	}
	return p
}

func card(g Group, mode Mode, position *Position) Card {
	c := Card{
		ID:            g.ID,
		Title:         g.Title,
		CategoryID:    g.Category.ID,
		CategoryLabel: g.Category.Label,
		Color:         g.Category.Color,
		Schedule:      g.Schedule,
		Distance:      g.Distance,
		Directions:    DirectionsTo(g),
	}
	if g.Distance != nil {
		c.DistanceLabel = DistanceLabel(*g.Distance)
	}

	if mode == ModePrivileged {
		c.Location = g.Address.Formatted
		c.LeaderDisplay = g.LeaderDisplay
		c.Contacts = privilegedContacts(g)
		return c
	}

	c.Location = g.Address.Neighborhood
	c.ApproximateLocation = true
	c.Contacts = []ContactAction{publicContact(g, position)}
	return c
}

func publicContact(g Group, position *Position) ContactAction {
	action := ContactAction{Role: "coordinator", Label: "Fale Conosco"}
	if g.Coordinator == nil || g.Coordinator.WhatsApp == "" {
		return action
	}
	action.URL = WhatsAppLink(g.Coordinator.WhatsApp, InquiryMessage(g, position))
	action.Enabled = true
	return action
}

func privilegedContacts(g Group) []ContactAction {
	var actions []ContactAction
	for i, l := range g.Leaders {
		if !l.Reachable() {
			continue
		}
		actions = append(actions, ContactAction{
			Role:    "leader",
			Label:   l.FirstName("Líder " + strconv.Itoa(i+1)),
			URL:     WhatsAppLink(l.WhatsApp, ""),
			Enabled: true,
		})
	}
	if g.Supervisor != nil {
		sups := []Contact{g.Supervisor.First}
		if g.Supervisor.Second != nil {
			sups = append(sups, *g.Supervisor.Second)
		}
		for i, s := range sups {
			if !s.Reachable() {
				continue
			}
			actions = append(actions, ContactAction{
				Role:    "supervisor",
				Label:   s.FirstName("Supervisor " + strconv.Itoa(i+1)),
				URL:     WhatsAppLink(s.WhatsApp, ""),
				Enabled: true,
			})
		}
	}
	if len(actions) == 0 {
		actions = []ContactAction{{Role: "leader", Label: "Sem Contato"}}
	}
	return actions
}

// InquiryMessage is the prefilled text a visitor sends to the coordinator.
func InquiryMessage(g Group, position *Position) string {
	msg := fmt.Sprintf("Graça e paz, vi pelo localizador que tem uma célula %s próxima de casa,\ngostaria de mais informações sobre a %s",
		g.Category.Label, g.Title)
	if position != nil {
		msg += fmt.Sprintf("\n\nEstou localizado aqui: https://maps.google.com/?q=%s,%s",
			formatCoord(position.Lat), formatCoord(position.Lon))
	}
	return msg
}

// WhatsAppLink builds a wa.me link, with an optional prefilled text.
func WhatsAppLink(number, text string) string {
	link := "https://wa.me/" + Digits(number)
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link
}

// DirectionsTo builds the navigation deep links for a group.
func DirectionsTo(g Group) Directions {
	lat, lon := formatCoord(g.Position.Lat), formatCoord(g.Position.Lon)

	uber := url.Values{}
	uber.Set("action", "setPickup")
	uber.Set("pickup", "my_location")
	uber.Set("dropoff[latitude]", lat)
	uber.Set("dropoff[longitude]", lon)
	uber.Set("dropoff[nickname]", g.Title)

	return Directions{
		GoogleMaps: "https://www.google.com/maps/search/?api=1&query=" + lat + "," + lon,
		Waze:       "https://www.waze.com/ul?ll=" + lat + "," + lon + "&navigate=yes",
		Uber:       "https://m.uber.com/ul/?" + uber.Encode(),
	}
}

// DistanceLabel renders "850m" below one kilometer and "2.3km" otherwise.
func DistanceLabel(km float64) string {
	if m := math.Round(km * 1000); m < 1000 {
		return strconv.Itoa(int(m)) + "m"
	}
	return strconv.FormatFloat(km, 'f', 1, 64) + "km"
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
