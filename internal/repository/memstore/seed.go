package memstore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/qs-lzh/cineportal/internal/model"
)

// Seed is the starting content of a memory store. Movies and orders refer to
// other records by name, since ids are only assigned while loading.
type Seed struct {
	Cinemas   []string    `json:"cinemas"`
	Producers []string    `json:"producers"`
	Actors    []string    `json:"actors"`
	Movies    []SeedMovie `json:"movies"`
	Orders    []SeedOrder `json:"orders"`
}

type SeedMovie struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       float64             `json:"price"`
	ImageURL    string              `json:"image_url"`
	StartDate   time.Time           `json:"start_date"`
	Category    model.MovieCategory `json:"category"`
	Cinema      string              `json:"cinema"`
	Producer    string              `json:"producer"`
	Actors      []string            `json:"actors"`
}

type SeedOrder struct {
	UserID    string          `json:"user_id"`
	OrderDate time.Time       `json:"order_date"`
	Items     []SeedOrderItem `json:"items"`
}

type SeedOrderItem struct {
	Movie string  `json:"movie"`
	Price float64 `json:"price"`
}

func ReadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Load adds the seed to the store in one transaction. A name that matches no
// seeded record fails the whole load.
func (s *Store) Load(seed *Seed) error {
	return s.write(func(st *state) error {
		cinemas := map[string]uint{}
		for _, name := range seed.Cinemas {
			c := model.Cinema{ID: st.nextID(), Name: name}
			st.cinemas[c.ID] = c
			cinemas[name] = c.ID
		}
		producers := map[string]uint{}
		for _, name := range seed.Producers {
			p := model.Producer{ID: st.nextID(), FullName: name}
			st.producers[p.ID] = p
			producers[name] = p.ID
		}
		actors := map[string]uint{}
		for _, name := range seed.Actors {
			a := model.Actor{ID: st.nextID(), FullName: name}
			st.actors[a.ID] = a
			actors[name] = a.ID
		}

		movies := map[string]uint{}
		for _, sm := range seed.Movies {
			cinemaID, ok := cinemas[sm.Cinema]
			if !ok {
				return fmt.Errorf("movie %q: unknown cinema %q", sm.Name, sm.Cinema)
			}
			producerID, ok := producers[sm.Producer]
			if !ok {
				return fmt.Errorf("movie %q: unknown producer %q", sm.Name, sm.Producer)
			}
			m := model.Movie{
				ID:          st.nextID(),
				Name:        sm.Name,
				Description: sm.Description,
				Price:       sm.Price,
				ImageURL:    sm.ImageURL,
				StartDate:   sm.StartDate,
				Category:    sm.Category,
				CinemaID:    cinemaID,
				ProducerID:  producerID,
			}
			st.movies[m.ID] = m
			movies[sm.Name] = m.ID

			for _, actor := range sm.Actors {
				actorID, ok := actors[actor]
				if !ok {
					return fmt.Errorf("movie %q: unknown actor %q", sm.Name, actor)
				}
				st.links[linkKey{movieID: m.ID, actorID: actorID}] = struct{}{}
			}
		}

		for _, so := range seed.Orders {
			o := model.Order{ID: st.nextID(), UserID: so.UserID, OrderDate: so.OrderDate}
			for _, si := range so.Items {
				movieID, ok := movies[si.Movie]
				if !ok {
					return fmt.Errorf("order for %q: unknown movie %q", so.UserID, si.Movie)
				}
				it := model.OrderItem{ID: st.nextID(), OrderID: o.ID, MovieID: movieID, Price: si.Price}
				st.items[it.ID] = it
			}
			st.orders[o.ID] = o
		}
		return nil
	})
}
