package controllers

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"urbancare-be/lifecycle"
	"urbancare-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIssue handles the creation of a new issue. Every issue starts its
// lifecycle at reported.
func CreateIssue(c *gin.Context) {
	actor, createdByID, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		Title        string   `json:"title,omitempty" binding:"max=200"`
		Description  string   `json:"description" binding:"required,max=1000"`
		Category     string   `json:"category" binding:"required"`
		Location     string   `json:"location" binding:"required,max=200"`
		ImageURL     *string  `json:"imageUrl,omitempty"`
		VoiceNoteURL *string  `json:"voiceNoteUrl,omitempty"`
		Latitude     *float64 `json:"latitude,omitempty"`
		Longitude    *float64 `json:"longitude,omitempty"`
		Urgency      *string  `json:"urgency,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, err := lifecycle.ParseCategory(input.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	// Only an authority may pin an explicit urgency; everyone else gets the
	// derived value.
	var explicit lifecycle.Urgency
	if input.Urgency != nil {
		if actor.Role != lifecycle.RoleAuthority {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only an authority can set urgency explicitly"})
			return
		}
		explicit, err = lifecycle.ParseUrgency(*input.Urgency)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid urgency"})
			return
		}
	}

	now := time.Now()
	issue := models.Issue{
		ID:           primitive.NewObjectID(),
		Title:        models.DeriveTitle(input.Title, input.Description),
		Description:  input.Description,
		Category:     category,
		Location:     input.Location,
		ImageURL:     input.ImageURL,
		VoiceNoteURL: input.VoiceNoteURL,
		Status:       lifecycle.StatusReported,
		Urgency:      explicit,
		CreatedBy:    createdByID,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := issueCollection.InsertOne(ctx, issue); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create issue"})
		return
	}

	c.JSON(http.StatusCreated, issueView(ctx, issue, &createdByID))
}

// issueView is the API projection of an issue: the stored record plus the
// derived urgency and the caller's vote state.
func issueView(ctx context.Context, issue models.Issue, viewer *primitive.ObjectID) gin.H {
	urgency := issue.DerivedUrgency(time.Now(), escalationConfig())

	userHasVoted := false
	if viewer != nil {
		count, err := voteCollection.CountDocuments(ctx, bson.M{
			"issue": issue.ID,
			"user":  *viewer,
		})
		if err == nil && count > 0 {
			userHasVoted = true
		}
	}

	createdByMap := map[string]interface{}{"id": issue.CreatedBy}
	var creator models.User
	if err := userCollection.FindOne(ctx, bson.M{"_id": issue.CreatedBy}).Decode(&creator); err == nil {
		createdByMap["name"] = creator.Name
		createdByMap["email"] = creator.Email
	}

	view := gin.H{
		"id":              issue.ID,
		"title":           issue.Title,
		"description":     issue.Description,
		"category":        issue.Category,
		"location":        issue.Location,
		"latitude":        issue.Latitude,
		"longitude":       issue.Longitude,
		"imageUrl":        issue.ImageURL,
		"afterImageUrl":   issue.AfterImageURL,
		"voiceNoteUrl":    issue.VoiceNoteURL,
		"status":          issue.Status,
		"urgency":         urgency,
		"createdBy":       createdByMap,
		"assignedTo":      issue.AssignedTo,
		"department":      issue.Department,
		"workerNotes":     issue.WorkerNotes,
		"commentsCount":   issue.CommentsCount,
		"votes":           issue.VolunteersCount,
		"userHasVoted":    userHasVoted,
		"createdAt":       issue.CreatedAt,
		"updatedAt":       issue.UpdatedAt,
		"assignedAt":      issue.AssignedAt,
		"completedAt":     issue.CompletedAt,
	}
	return view
}

// GetAllIssues handles retrieving all issues with filtering, pagination, and
// sorting. sort=priority orders by the derived urgency, most severe first.
func GetAllIssues(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	category := c.Query("category")
	status := c.Query("status")
	search := c.Query("search")
	sortBy := c.DefaultQuery("sort", "newest")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filter := bson.M{}

	if category != "" && category != "all" {
		parsed, err := lifecycle.ParseCategory(category)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return
		}
		filter["category"] = parsed
	}

	if status != "" && status != "all" {
		// Normalize legacy spellings at the boundary; the stored values are
		// always canonical.
		parsed, err := lifecycle.ParseStatus(status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		filter["status"] = parsed
	}

	if search != "" {
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": search, "$options": "i"}},
			{"description": bson.M{"$regex": search, "$options": "i"}},
		}
	}

	totalCount, err := issueCollection.CountDocuments(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count issues"})
		return
	}

	var currentUserID *primitive.ObjectID
	if userIDStr, exists := c.Get("user_id"); exists {
		if objID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			currentUserID = &objID
		}
	}

	var issues []models.Issue

	if sortBy == "priority" {
		// Derived urgency cannot be sorted in the store; pull the filtered
		// window and order in memory.
		issues, err = findIssues(ctx, filter, options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetLimit(500))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
			return
		}

		now := time.Now()
		cfg := escalationConfig()
		sort.SliceStable(issues, func(i, j int) bool {
			ri := lifecycle.UrgencyRank(issues[i].DerivedUrgency(now, cfg))
			rj := lifecycle.UrgencyRank(issues[j].DerivedUrgency(now, cfg))
			if ri != rj {
				return ri > rj
			}
			return issues[i].CreatedAt.Before(issues[j].CreatedAt)
		})

		start := (page - 1) * limit
		if start > len(issues) {
			start = len(issues)
		}
		end := start + limit
		if end > len(issues) {
			end = len(issues)
		}
		issues = issues[start:end]
	} else {
		var sortOptions bson.D
		switch sortBy {
		case "oldest":
			sortOptions = bson.D{{Key: "createdAt", Value: 1}}
		case "votes":
			sortOptions = bson.D{{Key: "volunteersCount", Value: -1}, {Key: "createdAt", Value: -1}}
		case "newest":
			fallthrough
		default:
			sortOptions = bson.D{{Key: "createdAt", Value: -1}}
		}

		skip := (page - 1) * limit
		issues, err = findIssues(ctx, filter, options.Find().
			SetSort(sortOptions).
			SetSkip(int64(skip)).
			SetLimit(int64(limit)))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
			return
		}
	}

	views := make([]gin.H, 0, len(issues))
	for _, issue := range issues {
		views = append(views, issueView(ctx, issue, currentUserID))
	}

	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"issues":      views,
		"totalIssues": totalCount,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

func findIssues(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Issue, error) {
	cursor, err := issueCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// GetIssue retrieves an issue by its ID with vote and urgency information
func GetIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var issue models.Issue
	err = issueCollection.FindOne(ctx, bson.M{"_id": issueID}).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	var currentUserID *primitive.ObjectID
	if userIDStr, exists := c.Get("user_id"); exists {
		if objID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			currentUserID = &objID
		}
	}

	c.JSON(http.StatusOK, issueView(ctx, issue, currentUserID))
}

// GetIssuesByUser retrieves all issues created by the requesting user
func GetIssuesByUser(c *gin.Context) {
	_, userObjID, ok := actorFromContext(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issues, err := findIssues(ctx, bson.M{"createdBy": userObjID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	views := make([]gin.H, 0, len(issues))
	for _, issue := range issues {
		views = append(views, issueView(ctx, issue, &userObjID))
	}

	c.JSON(http.StatusOK, views)
}

// UpdateIssue allows the creator to amend report details while the issue is
// still waiting for triage. Once an authority has assigned it, content is
// frozen; only lifecycle transitions apply from then on.
func UpdateIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	_, userObjID, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		Title        *string  `json:"title,omitempty"`
		Description  *string  `json:"description,omitempty"`
		Category     *string  `json:"category,omitempty"`
		Location     *string  `json:"location,omitempty"`
		ImageURL     *string  `json:"imageUrl,omitempty"`
		VoiceNoteURL *string  `json:"voiceNoteUrl,omitempty"`
		Latitude     *float64 `json:"latitude,omitempty"`
		Longitude    *float64 `json:"longitude,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var issue models.Issue
	err = issueCollection.FindOne(ctx, bson.M{"_id": issueID}).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	if issue.CreatedBy != userObjID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to update this issue"})
		return
	}

	if issue.Status != lifecycle.StatusReported {
		c.JSON(http.StatusConflict, gin.H{"error": "Issue is already in triage and can no longer be edited"})
		return
	}

	update := bson.M{"updatedAt": time.Now()}
	if input.Title != nil {
		update["title"] = *input.Title
	}
	if input.Description != nil {
		update["description"] = *input.Description
	}
	if input.Category != nil {
		parsed, err := lifecycle.ParseCategory(*input.Category)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return
		}
		update["category"] = parsed
	}
	if input.Location != nil {
		update["location"] = *input.Location
	}
	if input.ImageURL != nil {
		update["imageUrl"] = input.ImageURL
	}
	if input.VoiceNoteURL != nil {
		update["voiceNoteUrl"] = input.VoiceNoteURL
	}
	if input.Latitude != nil {
		update["latitude"] = *input.Latitude
	}
	if input.Longitude != nil {
		update["longitude"] = *input.Longitude
	}

	// The CAS on status keeps the edit from racing an assignment.
	res, err := issueCollection.UpdateOne(ctx,
		bson.M{"_id": issueID, "status": lifecycle.StatusReported},
		bson.M{"$set": update})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update issue"})
		return
	}
	if res.MatchedCount == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Issue is already in triage and can no longer be edited"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Issue updated successfully"})
}

// HandleVoteOnIssue toggles the user's vote on an issue (vote if not voted,
// unvote if already voted)
func HandleVoteOnIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	_, userObjID, ok := actorFromContext(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	voted, count, err := issueStore.ToggleUpvote(ctx, issueID, userObjID)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	message := "Vote removed successfully"
	if voted {
		message = "Vote cast successfully"
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      message,
		"voted":        voted,
		"votes":        count,
		"userHasVoted": voted,
	})
}

// GetIssueAnalytics returns analytical data about issues
func GetIssueAnalytics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	categoryPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$category",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	categoryCursor, err := issueCollection.Aggregate(ctx, categoryPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get category analytics"})
		return
	}
	defer categoryCursor.Close(ctx)

	var issuesByCategory []bson.M
	if err := categoryCursor.All(ctx, &issuesByCategory); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode category analytics"})
		return
	}

	statusPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$status",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	statusCursor, err := issueCollection.Aggregate(ctx, statusPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get status analytics"})
		return
	}
	defer statusCursor.Close(ctx)

	var issuesByStatus []bson.M
	if err := statusCursor.All(ctx, &issuesByStatus); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode status analytics"})
		return
	}

	// Get last 7 days data
	var last7Days []gin.H
	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

		nextDate := date.AddDate(0, 0, 1)

		count, err := issueCollection.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{
				"$gte": date,
				"$lt":  nextDate,
			},
		})
		if err != nil {
			count = 0
		}

		last7Days = append(last7Days, gin.H{
			"date":  date.Format("2006-01-02"),
			"count": count,
		})
	}

	// Top voted issues straight off the denormalized counter.
	topVoted, err := findIssues(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "volunteersCount", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetLimit(5))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top voted issues"})
		return
	}

	type topVotedIssue struct {
		ID       primitive.ObjectID `json:"id"`
		Title    string             `json:"title"`
		Category string             `json:"category"`
		Votes    int64              `json:"votes"`
	}

	topVotedIssues := make([]topVotedIssue, 0, len(topVoted))
	for _, issue := range topVoted {
		topVotedIssues = append(topVotedIssues, topVotedIssue{
			ID:       issue.ID,
			Title:    issue.Title,
			Category: string(issue.Category),
			Votes:    issue.VolunteersCount,
		})
	}

	// Urgency distribution over open issues, using the derived value.
	openStatuses := []lifecycle.Status{
		lifecycle.StatusReported, lifecycle.StatusAssigned,
		lifecycle.StatusInProgress, lifecycle.StatusCompletedByWorker,
	}
	openList, err := findIssues(ctx, bson.M{"status": bson.M{"$in": openStatuses}}, options.Find().SetLimit(1000))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve open issues"})
		return
	}

	now := time.Now()
	cfg := escalationConfig()
	byUrgency := map[lifecycle.Urgency]int{}
	for _, issue := range openList {
		byUrgency[issue.DerivedUrgency(now, cfg)]++
	}

	totalIssues, err := issueCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalIssues = 0
	}

	totalVotes, err := voteCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalVotes = 0
	}

	resolvedIssues, err := issueCollection.CountDocuments(ctx, bson.M{"status": lifecycle.StatusResolved})
	if err != nil {
		resolvedIssues = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"issuesByCategory": issuesByCategory,
		"issuesByStatus":   issuesByStatus,
		"issuesByUrgency":  byUrgency,
		"last7Days":        last7Days,
		"topVotedIssues":   topVotedIssues,
		"totalIssues":      totalIssues,
		"totalVotes":       totalVotes,
		"openIssues":       int64(len(openList)),
		"resolvedIssues":   resolvedIssues,
	})
}

// RecentIssues returns the most recent issues that have latitude and
// longitude, with the derived urgency the map uses to color its markers.
func RecentIssues(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	limit := 19

	filter := bson.M{
		"latitude":  bson.M{"$exists": true, "$ne": nil},
		"longitude": bson.M{"$exists": true, "$ne": nil},
	}

	issues, err := findIssues(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve recent issues"})
		return
	}

	type markerResponse struct {
		ID        string             `json:"id"`
		Title     string             `json:"title"`
		Latitude  float64            `json:"latitude"`
		Longitude float64            `json:"longitude"`
		Location  string             `json:"location"`
		Category  lifecycle.Category `json:"category,omitempty"`
		Status    lifecycle.Status   `json:"status"`
		Urgency   lifecycle.Urgency  `json:"urgency"`
		CreatedAt time.Time          `json:"createdAt,omitempty"`
	}

	now := time.Now()
	cfg := escalationConfig()

	var response []markerResponse
	for _, issue := range issues {
		if issue.Latitude != nil && issue.Longitude != nil {
			response = append(response, markerResponse{
				ID:        issue.ID.Hex(),
				Title:     issue.Title,
				Latitude:  *issue.Latitude,
				Longitude: *issue.Longitude,
				Location:  issue.Location,
				Category:  issue.Category,
				Status:    issue.Status,
				Urgency:   issue.DerivedUrgency(now, cfg),
				CreatedAt: issue.CreatedAt,
			})
		}
	}

	c.JSON(http.StatusOK, response)
}
